package wgmanager

import (
	"fmt"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type PrivateKey struct {
	wgtypes.Key
}

type PublicKey struct {
	wgtypes.Key
}

// KeyPair couples a private key with the public key derived from it. The two
// are only ever created together so a stored public key always matches the
// stored private key.
type KeyPair struct {
	PrivateKey PrivateKey
	PublicKey  PublicKey
}

func ParsePrivateKey(s string) (PrivateKey, error) {
	key, err := wgtypes.ParseKey(s)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("could not parse private key: %w", err)
	}
	return PrivateKey{key}, nil
}

func ParsePublicKey(s string) (PublicKey, error) {
	key, err := wgtypes.ParseKey(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("could not parse public key: %w", err)
	}
	return PublicKey{key}, nil
}

func (k PrivateKey) PublicKey() PublicKey {
	return PublicKey{k.Key.PublicKey()}
}

func (k *PrivateKey) UnmarshalText(data []byte) error {
	key, err := wgtypes.ParseKey(string(data))
	if err != nil {
		return fmt.Errorf("could not unmarshal private key: %w", err)
	}
	*k = PrivateKey{key}
	return nil
}

func (k PrivateKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PublicKey) UnmarshalText(data []byte) error {
	key, err := wgtypes.ParseKey(string(data))
	if err != nil {
		return fmt.Errorf("could not unmarshal public key: %w", err)
	}
	*k = PublicKey{key}
	return nil
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
