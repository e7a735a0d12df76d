package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vishvananda/netlink"

	"eduvpn.org/wg-provision/internal/registry"
	"eduvpn.org/wg-provision/pkg/wgmanager"
)

func runInit(c *cli.Context) error {
	workflow, cfg, err := buildWorkflow(c)
	if err != nil {
		return err
	}

	port := cfg.ListenPort
	if c.IsSet(flagPort.Name) {
		port = c.Int(flagPort.Name)
	} else {
		port, err = workflow.Input.ListenPort(cfg.ListenPort)
		if err != nil {
			return err
		}
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("listen port %d is out of range", port)
	}

	keys, err := workflow.Keys.GenerateKeyPair()
	if err != nil {
		return err
	}

	serverAddr := fmt.Sprintf("%s.1/24", cfg.Pool.Base)
	err = workflow.Registry.Init(registry.InterfaceParams{
		Address:    serverAddr,
		ListenPort: port,
		PrivateKey: keys.PrivateKey,
	})
	if err != nil {
		return err
	}
	workflow.Log.Info().
		Str("registry", workflow.Registry.Path()).
		Str("publicKey", keys.PublicKey.String()).
		Msg("registry created")

	if err := setupLink(cfg.Interface, serverAddr); err != nil {
		return err
	}

	manager, err := wgmanager.New(cfg.Interface, port)
	if err != nil {
		return err
	}
	ctx, cancel := contextWithTimeout(c, time.Duration(cfg.ReloadTimeoutSec)*time.Second)
	defer cancel()
	if err := manager.Reload(ctx, keys.PrivateKey, nil); err != nil {
		return fmt.Errorf("error configuring device %s: %w", cfg.Interface, err)
	}
	workflow.Log.Info().Str("interface", cfg.Interface).Int("port", port).Msg("interface configured")
	return nil
}

type wgLink struct {
	attrs *netlink.LinkAttrs
}

func (w *wgLink) Attrs() *netlink.LinkAttrs {
	return w.attrs
}

func (w *wgLink) Type() string {
	return "wireguard"
}

// setupLink creates the wireguard link, assigns the server address and
// brings the link up. An already existing link or address is fine: init is
// safe to re-run after a partial setup.
func setupLink(name, address string) error {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	link := wgLink{attrs: &attrs}

	if err := netlink.LinkAdd(&link); err != nil && !os.IsExist(err) {
		return fmt.Errorf("error creating link %s: %w", name, err)
	}

	addr, err := netlink.ParseAddr(address)
	if err != nil {
		return fmt.Errorf("error parsing address %s: %w", address, err)
	}
	if err := netlink.AddrAdd(&link, addr); err != nil && !os.IsExist(err) {
		return fmt.Errorf("error assigning %s to %s: %w", address, name, err)
	}

	if err := netlink.LinkSetUp(&link); err != nil {
		return fmt.Errorf("error bringing up %s: %w", name, err)
	}
	return nil
}
