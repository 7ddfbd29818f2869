// Package credential keeps notification secrets out of the config file.
package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "hotelops"

// Environment variables consulted before the keyring.
const (
	EnvWebhookToken    = "HOTELOPS_WEBHOOK_TOKEN"
	EnvMailboxPassword = "HOTELOPS_MAILBOX_PASSWORD"
)

// ErrNotFound is returned when neither the environment nor the keyring
// holds a value.
var ErrNotFound = errors.New("credential not found")

// Vault reads and writes secrets in a keyring.
type Vault struct {
	open func() (keyring.Keyring, error)
}

// NewVault returns a vault backed by the operating system keyring.
func NewVault() *Vault {
	return &Vault{open: openSystemKeyring}
}

// NewVaultWith returns a vault over an already opened keyring.
func NewVaultWith(ring keyring.Keyring) *Vault {
	return &Vault{open: func() (keyring.Keyring, error) { return ring, nil }}
}

func openSystemKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/hotelops/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("hotelops-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get returns the secret stored under key.
func (v *Vault) Get(key string) (string, error) {
	ring, err := v.open()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Resolve prefers envVar over the keyring entry for key.
func (v *Vault) Resolve(key, envVar string) (string, error) {
	if val := os.Getenv(envVar); val != "" {
		return val, nil
	}
	return v.Get(key)
}

// Set stores value under key.
func (v *Vault) Set(key, value string) error {
	ring, err := v.open()
	if err != nil {
		return err
	}
	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "hotelops " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key reports ErrNotFound.
func (v *Vault) Delete(key string) error {
	ring, err := v.open()
	if err != nil {
		return err
	}
	err = ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
