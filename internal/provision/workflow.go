// Package provision implements the peer provisioning core: address
// allocation from a bounded pool, key handling, rendering of peer-side
// configuration documents, ingestion of foreign configurations, and the
// workflow tying them to the server-side registry and the running tunnel
// service.
package provision

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"eduvpn.org/wg-provision/internal/registry"
	"eduvpn.org/wg-provision/internal/wgconf"
	"eduvpn.org/wg-provision/pkg/wgmanager"
)

// Client configurations carry the peer's private key.
const (
	clientFileMode = 0600
	clientDirMode  = 0700
)

// Workflow runs the end-to-end provisioning operations. It is synchronous:
// each run performs allocation, generation, rendering, registration and
// reload strictly in sequence while holding the registry lock.
type Workflow struct {
	Registry *registry.Registry
	Keys     wgmanager.KeyProvider
	Reloader wgmanager.ServiceReloader
	Input    InputSource

	Pool             Pool
	Interface        string
	Endpoint         string
	DNS              []string
	AllowedIPs       []string
	KeepaliveSeconds int
	ReloadTimeout    time.Duration
	ClientDir        string

	Log zerolog.Logger
	Now func() time.Time
}

// Result describes a completed provisioning run. When the returned error is
// a *ReloadWarning the Result is still valid: the peer is registered and
// its configuration was written.
type Result struct {
	Record       registry.PeerRecord
	ClientConfig string
	ClientPath   string
}

func (w *Workflow) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// AddPeer provisions a new peer: allocate the lowest free pool address,
// generate a keypair, render the client document, append the peer to the
// registry and reload the tunnel service. All validation happens before the
// registry mutation; only the reload can fail afterwards, and that failure
// is returned as a *ReloadWarning alongside a valid Result.
func (w *Workflow) AddPeer(ctx context.Context, name string, overwrite bool) (*Result, error) {
	name = SanitizeName(name)
	if name == "" {
		return nil, fail(StageNew, fmt.Errorf("peer name is empty after sanitization"))
	}

	if err := w.Registry.Lock(); err != nil {
		return nil, fail(StageNew, err)
	}
	defer w.Registry.Unlock()

	snap, err := w.Registry.Load()
	if err != nil {
		return nil, fail(StageNew, err)
	}

	serverKey, err := snap.ServerPrivateKey()
	if err != nil {
		return nil, fail(StageNew, err)
	}

	replace, err := w.resolveDuplicate(snap, name, overwrite)
	if err != nil {
		return nil, fail(StageNew, err)
	}

	ip, err := w.Pool.Allocate(snap.Document())
	if err != nil {
		return nil, fail(StageAddressAssigned, err)
	}
	w.Log.Debug().Str("peer", name).IPAddr("address", ip).Msg("address assigned")

	keys, err := w.Keys.GenerateKeyPair()
	if err != nil {
		return nil, fail(StageKeysGenerated, err)
	}

	client := RenderClientConfig(ClientParams{
		Name:             name,
		IP:               ip,
		PrivateKey:       keys.PrivateKey,
		ServerPublicKey:  serverKey.PublicKey(),
		Endpoint:         w.Endpoint,
		DNS:              w.DNS,
		AllowedIPs:       w.AllowedIPs,
		KeepaliveSeconds: w.KeepaliveSeconds,
	})

	record := registry.PeerRecord{
		Name:      name,
		PublicKey: keys.PublicKey,
		IP:        ip,
		CreatedAt: w.now(),
	}
	result, err := w.register(snap, record, replace, client)
	if err != nil {
		return nil, err
	}
	w.Log.Info().Str("peer", name).IPAddr("address", ip).Msg("peer registered")

	if err := w.reload(ctx, name); err != nil {
		return result, err
	}
	w.Log.Info().Str("interface", w.Interface).Msg("service reloaded")
	return result, nil
}

// IngestConfig validates pasted foreign configuration text, derives the
// public key from its private key, honors an in-pool free address it
// declares (allocating one otherwise), registers the peer and persists a
// copy of the text under the sanitized identifier.
func (w *Workflow) IngestConfig(ctx context.Context, raw string, overwrite bool) (*Result, error) {
	doc, name, err := ParseForeignConfig(raw)
	if err != nil {
		return nil, fail(StageNew, err)
	}

	keyText, _ := doc.Interface().Get("PrivateKey")
	privateKey, err := wgmanager.ParsePrivateKey(keyText)
	if err != nil {
		return nil, fail(StageNew, &InvalidConfigError{Reason: "invalid private key"})
	}
	publicKey, err := w.Keys.DerivePublicKey(privateKey)
	if err != nil {
		return nil, fail(StageKeysGenerated, err)
	}

	if err := w.Registry.Lock(); err != nil {
		return nil, fail(StageNew, err)
	}
	defer w.Registry.Unlock()

	snap, err := w.Registry.Load()
	if err != nil {
		return nil, fail(StageNew, err)
	}

	replace, err := w.resolveDuplicate(snap, name, overwrite)
	if err != nil {
		return nil, fail(StageNew, err)
	}

	ip := w.declaredAddress(doc.Interface())
	if ip == nil || !w.Pool.Contains(ip) || w.Pool.InUse(snap.Document(), ip) {
		ip, err = w.Pool.Allocate(snap.Document())
		if err != nil {
			return nil, fail(StageAddressAssigned, err)
		}
	}
	w.Log.Debug().Str("peer", name).IPAddr("address", ip).Msg("address assigned")

	record := registry.PeerRecord{
		Name:      name,
		PublicKey: publicKey,
		IP:        ip,
		CreatedAt: w.now(),
	}
	result, err := w.register(snap, record, replace, raw)
	if err != nil {
		return nil, err
	}
	w.Log.Info().Str("peer", name).IPAddr("address", ip).Msg("foreign configuration ingested")

	if err := w.reload(ctx, name); err != nil {
		return result, err
	}
	return result, nil
}

// resolveDuplicate decides what an existing peer with the same name means:
// abort with ErrDuplicatePeerName, or replace its section when the caller
// confirmed. The registry never ends up with two sections for one name.
func (w *Workflow) resolveDuplicate(snap *registry.Snapshot, name string, overwrite bool) (replace bool, err error) {
	if !snap.HasPeer(name) {
		return false, nil
	}
	if overwrite {
		return true, nil
	}
	confirmed, err := w.Input.ConfirmOverwrite(name)
	if err != nil {
		return false, err
	}
	if !confirmed {
		return false, ErrDuplicatePeerName
	}
	return true, nil
}

// register writes the client configuration file and commits the registry
// mutation. The registry store is the durability point: a failed store
// removes the client file again so nothing is half-provisioned.
func (w *Workflow) register(snap *registry.Snapshot, record registry.PeerRecord, replace bool, client string) (*Result, error) {
	var data []byte
	var err error
	if replace {
		data, err = snap.Replace(record)
	} else {
		data = snap.Append(record)
	}
	if err != nil {
		return nil, fail(StageRegistered, err)
	}

	clientPath := ""
	if w.ClientDir != "" {
		if err := os.MkdirAll(w.ClientDir, clientDirMode); err != nil {
			return nil, fail(StageRegistered, err)
		}
		clientPath = filepath.Join(w.ClientDir, record.Name+".conf")
		if err := os.WriteFile(clientPath, []byte(client), clientFileMode); err != nil {
			return nil, fail(StageRegistered, err)
		}
	}

	if err := w.Registry.Store(data); err != nil {
		if clientPath != "" {
			os.Remove(clientPath)
		}
		return nil, fail(StageRegistered, err)
	}

	return &Result{Record: record, ClientConfig: client, ClientPath: clientPath}, nil
}

func (w *Workflow) reload(ctx context.Context, peerName string) error {
	warn := func(err error) error {
		return &ReloadWarning{PeerName: peerName, Interface: w.Interface, Err: err}
	}

	snap, err := w.Registry.Load()
	if err != nil {
		return warn(err)
	}
	serverKey, err := snap.ServerPrivateKey()
	if err != nil {
		return warn(err)
	}
	peers, err := snap.Peers()
	if err != nil {
		// Invalid sections are skipped, not fatal: the new peer still
		// reaches the device.
		w.Log.Warn().Err(err).Msg("skipping invalid registry sections")
	}

	if w.ReloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.ReloadTimeout)
		defer cancel()
	}
	if err := w.Reloader.Reload(ctx, serverKey, peers); err != nil {
		return warn(err)
	}
	return nil
}

func (w *Workflow) declaredAddress(iface *wgconf.Section) net.IP {
	value, ok := iface.Get("Address")
	if !ok {
		return nil
	}
	first, _, _ := strings.Cut(value, ",")
	addr, _, _ := strings.Cut(strings.TrimSpace(first), "/")
	return net.ParseIP(addr)
}
