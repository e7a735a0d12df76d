package registry

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"eduvpn.org/wg-provision/internal/wgconf"
	"eduvpn.org/wg-provision/pkg/wgmanager"
)

// Snapshot is one loaded registry state. Mutations return new document
// bytes; nothing is durable until the caller passes them to Registry.Store.
type Snapshot struct {
	doc *wgconf.Document
}

func (s *Snapshot) Document() *wgconf.Document {
	return s.doc
}

// ServerPrivateKey returns the server's own key from the [Interface]
// section.
func (s *Snapshot) ServerPrivateKey() (wgmanager.PrivateKey, error) {
	value, _ := s.doc.Interface().Get("PrivateKey")
	return wgmanager.ParsePrivateKey(value)
}

// ListenPort returns the server's listen port, or 0 when absent.
func (s *Snapshot) ListenPort() int {
	value, ok := s.doc.Interface().Get("ListenPort")
	if !ok {
		return 0
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return port
}

// peerName extracts the identifier from a peer section's comment, which has
// the shape "# <name> @ <RFC3339 timestamp>".
func peerName(section *wgconf.Section) string {
	fields := strings.Fields(section.Comment)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func peerCreatedAt(section *wgconf.Section) time.Time {
	fields := strings.Fields(section.Comment)
	if len(fields) < 3 || fields[1] != "@" {
		return time.Time{}
	}
	created, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return time.Time{}
	}
	return created
}

func (s *Snapshot) HasPeer(name string) bool {
	for _, section := range s.doc.Peers() {
		if peerName(section) == name {
			return true
		}
	}
	return false
}

// Records returns every well-formed peer section as a PeerRecord. Sections
// with an unparseable public key or address are skipped.
func (s *Snapshot) Records() []PeerRecord {
	var records []PeerRecord
	for _, section := range s.doc.Peers() {
		record, err := sectionRecord(section)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records
}

// Peers converts the registry's peer sections into the device peer list for
// a reload. Sections whose public key does not parse are collected into an
// InvalidPeerErrorList; the valid peers are still returned so one corrupt
// section does not take the whole tunnel down.
func (s *Snapshot) Peers() ([]wgmanager.Peer, error) {
	var peers []wgmanager.Peer
	var invalid []InvalidPeerError
	for _, section := range s.doc.Peers() {
		record, err := sectionRecord(section)
		if err != nil {
			invalid = append(invalid, InvalidPeerError{name: peerName(section), err: err})
			continue
		}
		peers = append(peers, wgmanager.Peer{PublicKey: record.PublicKey, IP: record.IP})
	}
	if len(invalid) > 0 {
		return peers, InvalidPeerErrorList{errors: invalid}
	}
	return peers, nil
}

func sectionRecord(section *wgconf.Section) (PeerRecord, error) {
	keyText, ok := section.Get("PublicKey")
	if !ok {
		return PeerRecord{}, fmt.Errorf("peer section has no public key")
	}
	publicKey, err := wgmanager.ParsePublicKey(keyText)
	if err != nil {
		return PeerRecord{}, err
	}
	allowed, ok := section.Get("AllowedIPs")
	if !ok {
		return PeerRecord{}, fmt.Errorf("peer section has no allowed IPs")
	}
	first, _, _ := strings.Cut(allowed, ",")
	addr, _, _ := strings.Cut(strings.TrimSpace(first), "/")
	ip := net.ParseIP(addr)
	if ip == nil {
		return PeerRecord{}, fmt.Errorf("peer section has no parseable address")
	}
	return PeerRecord{
		Name:      peerName(section),
		PublicKey: publicKey,
		IP:        ip,
		CreatedAt: peerCreatedAt(section),
	}, nil
}

func renderPeerSection(record PeerRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s @ %s\n", record.Name, record.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString("[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", record.PublicKey.String())
	fmt.Fprintf(&b, "AllowedIPs = %s/32\n", record.IP.String())
	return b.String()
}

// Append renders record as a new delimited peer section after the existing
// document. The existing bytes are a strict prefix of the result; nothing
// already in the registry is rewritten. It does not detect duplicates:
// callers wanting replacement semantics must check HasPeer first and use
// Replace.
func (s *Snapshot) Append(record PeerRecord) []byte {
	src := s.doc.Bytes()
	var b strings.Builder
	b.Write(src)
	if len(src) > 0 && !strings.HasSuffix(string(src), "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderPeerSection(record))
	return []byte(b.String())
}

// Replace swaps the one peer section named by record for a freshly rendered
// one, leaving every other byte of the document untouched.
func (s *Snapshot) Replace(record PeerRecord) ([]byte, error) {
	for _, section := range s.doc.Peers() {
		if peerName(section) != record.Name {
			continue
		}
		start, end := section.Bounds()
		src := s.doc.Bytes()
		var b strings.Builder
		b.Write(src[:start])
		b.WriteString(renderPeerSection(record))
		b.Write(src[end:])
		return []byte(b.String()), nil
	}
	return nil, fmt.Errorf("no peer section named %q", record.Name)
}
