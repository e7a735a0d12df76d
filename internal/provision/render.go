package provision

import (
	"fmt"
	"net"
	"strings"

	"eduvpn.org/wg-provision/pkg/wgmanager"
)

// ClientParams holds everything needed to render one peer-side
// configuration document.
type ClientParams struct {
	Name             string
	IP               net.IP
	PrivateKey       wgmanager.PrivateKey
	ServerPublicKey  wgmanager.PublicKey
	Endpoint         string
	DNS              []string
	AllowedIPs       []string
	KeepaliveSeconds int
}

// RenderClientConfig produces the peer-side configuration document. Field
// order is fixed and the output is byte-for-byte reproducible for identical
// inputs. AllowedIPs is passed through verbatim; it is the caller's
// split-tunnel vs full-tunnel policy, not something computed here.
func RenderClientConfig(p ClientParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", p.Name)
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", p.PrivateKey.String())
	fmt.Fprintf(&b, "Address = %s/24\n", p.IP.String())
	if len(p.DNS) > 0 {
		fmt.Fprintf(&b, "DNS = %s\n", strings.Join(p.DNS, ", "))
	}
	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", p.ServerPublicKey.String())
	fmt.Fprintf(&b, "Endpoint = %s\n", p.Endpoint)
	if len(p.AllowedIPs) > 0 {
		fmt.Fprintf(&b, "AllowedIPs = %s\n", strings.Join(p.AllowedIPs, ", "))
	}
	if p.KeepaliveSeconds > 0 {
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", p.KeepaliveSeconds)
	}
	return b.String()
}
