// Package config loads the server-side tool configuration from a TOML
// file. Every field has a default so the tool runs without a file at all.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type PoolConfig struct {
	Base  string `toml:"base"`
	Start int    `toml:"start"`
	End   int    `toml:"end"`
}

type Config struct {
	Interface        string     `toml:"interface"`
	ListenPort       int        `toml:"listen_port"`
	Endpoint         string     `toml:"endpoint"`
	DNS              []string   `toml:"dns"`
	AllowedIPs       []string   `toml:"allowed_ips"`
	KeepaliveSeconds int        `toml:"keepalive_seconds"`
	ReloadTimeoutSec int        `toml:"reload_timeout_seconds"`
	RegistryPath     string     `toml:"registry_path"`
	ClientDir        string     `toml:"client_dir"`
	Pool             PoolConfig `toml:"pool"`
}

func Default() Config {
	return Config{
		Interface:        "wg0",
		ListenPort:       51820,
		DNS:              []string{"1.1.1.1"},
		AllowedIPs:       []string{"0.0.0.0/0"},
		KeepaliveSeconds: 25,
		ReloadTimeoutSec: 10,
		RegistryPath:     "/etc/wireguard/wg0.conf",
		ClientDir:        "/etc/wireguard/clients",
		Pool:             PoolConfig{Base: "10.0.0", Start: 2, End: 254},
	}
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("error loading configuration %s: %w", path, err)
	}
	return cfg, nil
}
