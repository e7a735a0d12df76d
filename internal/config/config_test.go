package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "wg0", cfg.Interface)
	assert.Equal(t, 25, cfg.KeepaliveSeconds)
	assert.Equal(t, "10.0.0", cfg.Pool.Base)
	assert.Equal(t, 2, cfg.Pool.Start)
	assert.Equal(t, 254, cfg.Pool.End)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
interface = "wg1"
endpoint = "vpn.example.org:51821"
dns = ["9.9.9.9"]
keepalive_seconds = 15

[pool]
base = "10.9.0"
start = 10
end = 20
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wg1", cfg.Interface)
	assert.Equal(t, "vpn.example.org:51821", cfg.Endpoint)
	assert.Equal(t, []string{"9.9.9.9"}, cfg.DNS)
	assert.Equal(t, 15, cfg.KeepaliveSeconds)
	assert.Equal(t, PoolConfig{Base: "10.9.0", Start: 10, End: 20}, cfg.Pool)

	// Untouched fields keep their defaults.
	assert.Equal(t, 51820, cfg.ListenPort)
	assert.Equal(t, []string{"0.0.0.0/0"}, cfg.AllowedIPs)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("interface = [broken"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}
