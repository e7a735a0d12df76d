// Package registry manages the server-side peer registry: one WireGuard
// configuration document holding the server's [Interface] section followed
// by one [Peer] section per provisioned peer. Peer sections are appended,
// never reordered, and every mutation is persisted by writing a temporary
// file and renaming it over the registry in a single operation.
package registry

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"eduvpn.org/wg-provision/internal/wgconf"
	"eduvpn.org/wg-provision/pkg/wgmanager"
)

// ErrNotInitialized is returned when the registry file is missing or lacks
// a server [Interface] section with a private key. Provisioning checks this
// before any other step.
var ErrNotInitialized = fmt.Errorf("registry not initialized, run init first")

// Private key material lives in the registry, so it is owner-only.
const registryMode = 0600

// PeerRecord is one provisioned peer as stored in the registry.
type PeerRecord struct {
	Name      string
	PublicKey wgmanager.PublicKey
	IP        net.IP
	CreatedAt time.Time
}

// Registry is a file-backed peer registry. The flock must be held across
// any read-allocate-append sequence: concurrent provisioning runs racing on
// the same file would otherwise lose updates.
type Registry struct {
	path string
	lock *flock.Flock
}

func New(path string) *Registry {
	return &Registry{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) Lock() error {
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("error locking registry: %w", err)
	}
	return nil
}

// TryLock attempts the registry lock without blocking.
func (r *Registry) TryLock() (bool, error) {
	return r.lock.TryLock()
}

func (r *Registry) Unlock() error {
	return r.lock.Unlock()
}

// InterfaceParams are the server's own parameters written by Init.
type InterfaceParams struct {
	Address    string
	ListenPort int
	PrivateKey wgmanager.PrivateKey
}

// Init writes a fresh registry holding only the server section. It refuses
// to clobber an existing registry.
func (r *Registry) Init(params InterfaceParams) error {
	if _, err := os.Stat(r.path); err == nil {
		return fmt.Errorf("registry %s already exists", r.path)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("error creating registry directory: %w", err)
	}
	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "Address = %s\n", params.Address)
	fmt.Fprintf(&b, "ListenPort = %d\n", params.ListenPort)
	fmt.Fprintf(&b, "PrivateKey = %s\n", params.PrivateKey.String())
	return r.Store([]byte(b.String()))
}

// Load reads and parses the registry, verifying the server section is in
// place.
func (r *Registry) Load() (*Snapshot, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("error reading registry: %w", err)
	}
	doc := wgconf.Parse(raw)
	iface := doc.Interface()
	if iface == nil {
		return nil, ErrNotInitialized
	}
	if _, ok := iface.Get("PrivateKey"); !ok {
		return nil, ErrNotInitialized
	}
	return &Snapshot{doc: doc}, nil
}

// Store atomically replaces the registry contents: the document is written
// to a temporary file in the same directory, synced, and renamed into
// place, so a crash mid-write never leaves a partially written registry.
func (r *Registry) Store(data []byte) error {
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("error creating temporary registry file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(registryMode); err != nil {
		tmp.Close()
		return fmt.Errorf("error setting registry permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("error replacing registry: %w", err)
	}
	return nil
}
