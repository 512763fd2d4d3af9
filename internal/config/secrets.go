package config

import (
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

// SecretPrefix marks a value stored in the system keyring under the rest of the string.
const SecretPrefix = "keyring:"

const serviceName = "mail-sync"

// OpenKeyring returns the system keyring used for secret references.
func OpenKeyring(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return ring, nil
}

// NeedsKeyring reports whether any secret refers to the keyring.
func (c *Config) NeedsKeyring() bool {
	for _, acc := range c.Accounts {
		if isRef(acc.Password) || isRef(acc.RefreshToken) {
			return true
		}
	}
	for _, client := range c.Clients {
		if isRef(client.Secret) {
			return true
		}
	}
	return false
}

func isRef(v string) bool {
	return strings.HasPrefix(v, SecretPrefix)
}

// ResolveSecrets replaces every keyring reference with its stored value.
func (c *Config) ResolveSecrets(ring keyring.Keyring) error {
	resolve := func(v *string) error {
		if !isRef(*v) {
			return nil
		}
		key := strings.TrimPrefix(*v, SecretPrefix)
		item, err := ring.Get(key)
		if err != nil {
			return fmt.Errorf("failed to read secret %q: %w", key, err)
		}
		*v = string(item.Data)
		return nil
	}

	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if err := resolve(&acc.Password); err != nil {
			return fmt.Errorf("account %s: %w", acc.ID, err)
		}
		if err := resolve(&acc.RefreshToken); err != nil {
			return fmt.Errorf("account %s: %w", acc.ID, err)
		}
	}
	for kind, client := range c.Clients {
		if err := resolve(&client.Secret); err != nil {
			return fmt.Errorf("client %s: %w", kind, err)
		}
		c.Clients[kind] = client
	}
	return nil
}
