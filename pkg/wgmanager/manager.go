// Package wgmanager wraps the WireGuard control plane: key material in the
// protocol's canonical encoding and reconfiguration of a kernel device
// through wgctrl. Provisioning code consumes it only through the KeyProvider
// and ServiceReloader capabilities so it can be driven by fakes in tests.
package wgmanager

import (
	"context"
	"fmt"
	"net"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Peer is one tunnel endpoint as the device sees it: a public key and the
// single host address routed to it.
type Peer struct {
	PublicKey PublicKey
	IP        net.IP
}

type KeyProvider interface {
	GenerateKeyPair() (KeyPair, error)
	DerivePublicKey(PrivateKey) (PublicKey, error)
}

// ServiceReloader pushes the full peer set into the running tunnel service.
// The call blocks; callers bound it with the context deadline.
type ServiceReloader interface {
	Reload(ctx context.Context, serverKey PrivateKey, peers []Peer) error
}

type WGManager struct {
	Interface string
	Port      int
}

func New(wgInterface string, port int) (*WGManager, error) {
	if wgInterface == "" {
		return nil, fmt.Errorf("interface name must not be empty")
	}
	return &WGManager{Interface: wgInterface, Port: port}, nil
}

func (m *WGManager) GenerateKeyPair() (KeyPair, error) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("error generating private key: %w", err)
	}
	private := PrivateKey{key}
	return KeyPair{PrivateKey: private, PublicKey: private.PublicKey()}, nil
}

func (m *WGManager) DerivePublicKey(private PrivateKey) (PublicKey, error) {
	return private.PublicKey(), nil
}

// Reload replaces the device's peer list with the given peers. wgctrl has no
// context support, so the call runs in a goroutine and the result is
// abandoned when the context expires first.
func (m *WGManager) Reload(ctx context.Context, serverKey PrivateKey, peers []Peer) error {
	done := make(chan error, 1)
	go func() {
		done <- m.configureDevice(serverKey, peers)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("reloading %s: %w", m.Interface, ctx.Err())
	}
}

func (m *WGManager) configureDevice(serverKey PrivateKey, peers []Peer) error {
	wg, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("error creating WireGuard client: %w", err)
	}
	defer wg.Close()

	const amountOfBitsInIPv4Address = 32
	peerConfigs := make([]wgtypes.PeerConfig, 0, len(peers))
	for _, peer := range peers {
		allowedIPs := []net.IPNet{{
			IP:   peer.IP,
			Mask: net.CIDRMask(amountOfBitsInIPv4Address, amountOfBitsInIPv4Address),
		}}
		peerConfigs = append(peerConfigs, wgtypes.PeerConfig{
			PublicKey:         peer.PublicKey.Key,
			ReplaceAllowedIPs: true,
			AllowedIPs:        allowedIPs,
		})
	}

	cfg := wgtypes.Config{
		PrivateKey:   &serverKey.Key,
		ListenPort:   &m.Port,
		ReplacePeers: true,
		Peers:        peerConfigs,
	}
	if err := wg.ConfigureDevice(m.Interface, cfg); err != nil {
		return fmt.Errorf("error configuring WireGuard device %s: %w", m.Interface, err)
	}
	return nil
}
