package registry

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"eduvpn.org/wg-provision/pkg/wgmanager"
)

func generateKey(t *testing.T) wgmanager.PrivateKey {
	t.Helper()
	key, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	return wgmanager.PrivateKey{Key: key}
}

func testRegistry(t *testing.T) (*Registry, wgmanager.PrivateKey) {
	t.Helper()
	reg := New(filepath.Join(t.TempDir(), "wg0.conf"))
	serverKey := generateKey(t)
	require.NoError(t, reg.Init(InterfaceParams{
		Address:    "10.0.0.1/24",
		ListenPort: 51820,
		PrivateKey: serverKey,
	}))
	return reg, serverKey
}

func testRecord(t *testing.T, name, ip string) PeerRecord {
	t.Helper()
	return PeerRecord{
		Name:      name,
		PublicKey: generateKey(t).PublicKey(),
		IP:        net.ParseIP(ip),
		CreatedAt: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
}

func TestInitAndLoad(t *testing.T) {
	reg, serverKey := testRegistry(t)

	info, err := os.Stat(reg.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	snap, err := reg.Load()
	require.NoError(t, err)

	loaded, err := snap.ServerPrivateKey()
	require.NoError(t, err)
	assert.Equal(t, serverKey.String(), loaded.String())
	assert.Equal(t, 51820, snap.ListenPort())
}

func TestInitRefusesToClobber(t *testing.T) {
	reg, _ := testRegistry(t)
	err := reg.Init(InterfaceParams{Address: "10.0.0.1/24", ListenPort: 1, PrivateKey: generateKey(t)})
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "missing.conf"))
	_, err := reg.Load()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLoadRequiresServerSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wg0.conf")
	require.NoError(t, os.WriteFile(path, []byte("[Peer]\nPublicKey = abc\n"), 0600))
	_, err := New(path).Load()
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, os.WriteFile(path, []byte("[Interface]\nAddress = 10.0.0.1/24\n"), 0600))
	_, err = New(path).Load()
	assert.ErrorIs(t, err, ErrNotInitialized, "an interface section without a private key is not usable")
}

func TestAppendIsStrictlyAppendOnly(t *testing.T) {
	reg, _ := testRegistry(t)

	snap, err := reg.Load()
	require.NoError(t, err)
	before := string(snap.Document().Bytes())

	data := snap.Append(testRecord(t, "laptop", "10.0.0.2"))
	assert.True(t, strings.HasPrefix(string(data), before), "existing bytes must be a strict prefix of the result")
	assert.Greater(t, len(data), len(before))
	assert.Contains(t, string(data), "# laptop @ 2026-08-29T12:00:00Z\n[Peer]\n")
}

func TestAppendStoreLoadRoundTrip(t *testing.T) {
	reg, _ := testRegistry(t)

	snap, err := reg.Load()
	require.NoError(t, err)
	record := testRecord(t, "laptop", "10.0.0.2")
	require.NoError(t, reg.Store(snap.Append(record)))

	snap, err = reg.Load()
	require.NoError(t, err)
	require.True(t, snap.HasPeer("laptop"))

	records := snap.Records()
	require.Len(t, records, 1)
	assert.Equal(t, record.PublicKey.String(), records[0].PublicKey.String())
	assert.Equal(t, "10.0.0.2", records[0].IP.String())
	assert.Equal(t, record.CreatedAt, records[0].CreatedAt)
}

func TestReplaceLeavesOtherSectionsUntouched(t *testing.T) {
	reg, _ := testRegistry(t)

	snap, err := reg.Load()
	require.NoError(t, err)
	require.NoError(t, reg.Store(snap.Append(testRecord(t, "laptop", "10.0.0.2"))))
	snap, err = reg.Load()
	require.NoError(t, err)
	phone := testRecord(t, "phone", "10.0.0.3")
	require.NoError(t, reg.Store(snap.Append(phone)))

	snap, err = reg.Load()
	require.NoError(t, err)
	replacement := testRecord(t, "laptop", "10.0.0.4")
	data, err := snap.Replace(replacement)
	require.NoError(t, err)
	require.NoError(t, reg.Store(data))

	snap, err = reg.Load()
	require.NoError(t, err)
	records := snap.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "laptop", records[0].Name)
	assert.Equal(t, "10.0.0.4", records[0].IP.String())
	assert.Equal(t, replacement.PublicKey.String(), records[0].PublicKey.String())
	assert.Equal(t, "phone", records[1].Name)
	assert.Equal(t, phone.PublicKey.String(), records[1].PublicKey.String())
	assert.Contains(t, string(data), "# phone @ ")
}

func TestReplaceUnknownPeer(t *testing.T) {
	reg, _ := testRegistry(t)
	snap, err := reg.Load()
	require.NoError(t, err)

	_, err = snap.Replace(testRecord(t, "ghost", "10.0.0.9"))
	assert.Error(t, err)
}

func TestStoreLeavesNoTemporaryFiles(t *testing.T) {
	reg, _ := testRegistry(t)
	snap, err := reg.Load()
	require.NoError(t, err)
	require.NoError(t, reg.Store(snap.Append(testRecord(t, "laptop", "10.0.0.2"))))

	entries, err := os.ReadDir(filepath.Dir(reg.Path()))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}

func TestPeersSkipsInvalidSections(t *testing.T) {
	reg, _ := testRegistry(t)
	snap, err := reg.Load()
	require.NoError(t, err)
	good := testRecord(t, "laptop", "10.0.0.2")
	data := snap.Append(good)
	data = append(data, []byte("\n# broken @ 2026-08-29T12:00:00Z\n[Peer]\nPublicKey = not-a-key\nAllowedIPs = 10.0.0.3/32\n")...)
	require.NoError(t, reg.Store(data))

	snap, err = reg.Load()
	require.NoError(t, err)
	peers, err := snap.Peers()

	var invalid InvalidPeerErrorList
	require.ErrorAs(t, err, &invalid)
	require.Len(t, peers, 1, "the valid peer still reaches the device")
	assert.Equal(t, good.PublicKey.String(), peers[0].PublicKey.String())
}

func TestLockIsExclusive(t *testing.T) {
	reg, _ := testRegistry(t)
	require.NoError(t, reg.Lock())
	defer reg.Unlock()

	// A second handle on the same registry must not acquire the lock.
	other := New(reg.Path())
	locked, err := other.TryLock()
	require.NoError(t, err)
	assert.False(t, locked)
}
