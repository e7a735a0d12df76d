// Package wgconf models WireGuard configuration documents: a sequence of
// [Interface] and [Peer] sections holding ordered Key = Value properties,
// with # comments. Parsing is tolerant, mutation is not done through the
// parsed form: the document keeps byte offsets into the original text so
// sections can be appended after or spliced out of the raw bytes without
// disturbing anything else.
package wgconf

import "strings"

const (
	SectionInterface = "Interface"
	SectionPeer      = "Peer"
)

type Property struct {
	Key   string
	Value string
}

// Section is one [Name] block. Comment holds the text of the comment line
// immediately preceding the header, without the leading '#'. start points at
// that comment line when present, otherwise at the header line; end points
// just past the last property line.
type Section struct {
	Name    string
	Comment string
	Props   []Property

	start int
	end   int
}

// Get returns the value of the first property whose key matches,
// case-insensitively as wg-quick treats keys.
func (s *Section) Get(key string) (string, bool) {
	for _, p := range s.Props {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

// Bounds returns the section's byte range within the source text.
func (s *Section) Bounds() (start, end int) {
	return s.start, s.end
}

type Document struct {
	src      []byte
	Sections []*Section
}

// Bytes returns the original text the document was parsed from.
func (d *Document) Bytes() []byte {
	return d.src
}

// Interface returns the first [Interface] section, or nil.
func (d *Document) Interface() *Section {
	for _, s := range d.Sections {
		if s.Name == SectionInterface {
			return s
		}
	}
	return nil
}

// Peers returns all [Peer] sections in document order.
func (d *Document) Peers() []*Section {
	var peers []*Section
	for _, s := range d.Sections {
		if s.Name == SectionPeer {
			peers = append(peers, s)
		}
	}
	return peers
}
