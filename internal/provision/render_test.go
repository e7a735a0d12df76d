package provision

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"eduvpn.org/wg-provision/pkg/wgmanager"
)

func testKeyPair(t *testing.T) wgmanager.KeyPair {
	t.Helper()
	key, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	private := wgmanager.PrivateKey{Key: key}
	return wgmanager.KeyPair{PrivateKey: private, PublicKey: private.PublicKey()}
}

func TestRenderClientConfigFieldOrder(t *testing.T) {
	client := testKeyPair(t)
	server := testKeyPair(t)

	got := RenderClientConfig(ClientParams{
		Name:             "laptop",
		IP:               net.ParseIP("10.0.0.2"),
		PrivateKey:       client.PrivateKey,
		ServerPublicKey:  server.PublicKey,
		Endpoint:         "vpn.example.org:51820",
		DNS:              []string{"1.1.1.1", "8.8.8.8"},
		AllowedIPs:       []string{"0.0.0.0/0"},
		KeepaliveSeconds: 25,
	})

	want := "# laptop\n" +
		"[Interface]\n" +
		"PrivateKey = " + client.PrivateKey.String() + "\n" +
		"Address = 10.0.0.2/24\n" +
		"DNS = 1.1.1.1, 8.8.8.8\n" +
		"\n" +
		"[Peer]\n" +
		"PublicKey = " + server.PublicKey.String() + "\n" +
		"Endpoint = vpn.example.org:51820\n" +
		"AllowedIPs = 0.0.0.0/0\n" +
		"PersistentKeepalive = 25\n"
	assert.Equal(t, want, got)
}

func TestRenderClientConfigIsDeterministic(t *testing.T) {
	client := testKeyPair(t)
	server := testKeyPair(t)
	params := ClientParams{
		Name:             "phone",
		IP:               net.ParseIP("10.0.0.3"),
		PrivateKey:       client.PrivateKey,
		ServerPublicKey:  server.PublicKey,
		Endpoint:         "vpn.example.org:51820",
		DNS:              []string{"9.9.9.9"},
		AllowedIPs:       []string{"10.0.0.0/24", "192.168.1.0/24"},
		KeepaliveSeconds: 25,
	}

	assert.Equal(t, RenderClientConfig(params), RenderClientConfig(params))
}

func TestRenderClientConfigOmitsEmptyFields(t *testing.T) {
	client := testKeyPair(t)
	server := testKeyPair(t)

	got := RenderClientConfig(ClientParams{
		Name:            "minimal",
		IP:              net.ParseIP("10.0.0.9"),
		PrivateKey:      client.PrivateKey,
		ServerPublicKey: server.PublicKey,
		Endpoint:        "vpn.example.org:51820",
	})

	assert.NotContains(t, got, "DNS")
	assert.NotContains(t, got, "PersistentKeepalive")
	assert.NotContains(t, got, "AllowedIPs")
}

func TestRenderedConfigRoundTripsThroughIngestion(t *testing.T) {
	client := testKeyPair(t)
	server := testKeyPair(t)

	rendered := RenderClientConfig(ClientParams{
		Name:            "laptop",
		IP:              net.ParseIP("10.0.0.2"),
		PrivateKey:      client.PrivateKey,
		ServerPublicKey: server.PublicKey,
		Endpoint:        "vpn.example.org:51820",
	})

	doc, name, err := ParseForeignConfig(rendered)
	require.NoError(t, err)
	assert.Equal(t, "laptop", name)
	key, ok := doc.Interface().Get("PrivateKey")
	require.True(t, ok)
	assert.Equal(t, client.PrivateKey.String(), key)
}
