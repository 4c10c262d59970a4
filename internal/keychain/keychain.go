// Package keychain caches the vault passphrase in the OS credential store so
// the CLI can unlock without prompting.
package keychain

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/zalando/go-keyring"
)

const serviceName = "keevault"

// Store keys cached passphrases by the absolute vault path.
type Store struct {
	service string
}

func New() *Store {
	return &Store{service: serviceName}
}

func account(vaultPath string) string {
	if abs, err := filepath.Abs(vaultPath); err == nil {
		return abs
	}
	return vaultPath
}

// Save stores passphrase for vaultPath, replacing any previous value.
func (s *Store) Save(vaultPath string, passphrase []byte) error {
	if err := keyring.Set(s.service, account(vaultPath), string(passphrase)); err != nil {
		return fmt.Errorf("keychain save: %w", err)
	}
	return nil
}

// Load returns the cached passphrase, or common.ErrNotFound.
func (s *Store) Load(vaultPath string) ([]byte, error) {
	pw, err := keyring.Get(s.service, account(vaultPath))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keychain: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("keychain load: %w", err)
	}
	return []byte(pw), nil
}

// Forget removes the cached passphrase. A missing entry is not an error.
func (s *Store) Forget(vaultPath string) error {
	err := keyring.Delete(s.service, account(vaultPath))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain forget: %w", err)
	}
	return nil
}

func (s *Store) Has(vaultPath string) bool {
	_, err := keyring.Get(s.service, account(vaultPath))
	return err == nil
}
