// Package keystore persists the serialized master key record.
package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Storage is the contract between the encryption service and wherever the
// key record lives. The record is opaque to the store.
//
// Implementations must make Save atomic: a crash mid-write leaves either the
// previous record or the new one, never a partial file. Delete must be
// idempotent.
type Storage interface {
	// Exists reports whether a key record is present, valid or not.
	Exists() bool
	// Load returns the stored record. It returns ErrKeyNotFound when nothing
	// is stored and ErrKeyStorage when the record cannot be read.
	Load() ([]byte, error)
	// Save replaces the stored record.
	Save(record []byte) error
	// Delete removes the record. Deleting a missing record is not an error.
	Delete() error
	// Path describes where the record lives.
	Path() string
}

var (
	// ErrKeyNotFound indicates no key has been set up.
	ErrKeyNotFound = errors.New("no encryption key found")
	// ErrKeyStorage indicates the key record exists but could not be read or written.
	ErrKeyStorage = errors.New("key storage error")
	// ErrPassphrase indicates the key file is passphrase protected and the
	// passphrase is missing or wrong.
	ErrPassphrase = errors.New("key file passphrase missing or incorrect")
)

// DefaultKeyFileName is the file name used by FileStorage unless overridden.
const DefaultKeyFileName = ".ironseal_key"

// DefaultConfigDir returns the per-user configuration directory for app.
func DefaultConfigDir(app string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config directory: %w", err)
	}
	return filepath.Join(base, app), nil
}
