// Package key holds the single master key used for envelope encryption and
// converts it to and from its recovery phrase and stored record.
package key

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/ironseal/envelope"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/mnemonic"
)

// Size is the master key length in bytes.
const Size = 32

var idInfo = []byte("ironseal:key-id:v1")

var (
	// ErrInvalidKey is returned for key material of the wrong size or a
	// stored record that does not describe a usable key.
	ErrInvalidKey = errors.New("invalid master key")
	// ErrDestroyed is returned by any operation on a destroyed Manager.
	ErrDestroyed = errors.New("key manager destroyed")
)

// Manager owns exactly one master key. The key bytes live in a memguard
// Enclave and are only unsealed for the duration of a single operation.
type Manager struct {
	id      string
	keyType Type
	enclave *memguard.Enclave
}

// Generate creates a Manager around a fresh random key.
func Generate() (*Manager, error) {
	rawKey, err := util.NewAESKey()
	if err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}
	return newManager(rawKey)
}

// FromBytes creates a Manager from raw key bytes. b is copied, not retained.
func FromBytes(b []byte) (*Manager, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(b), Size)
	}
	return newManager(util.CopyBytes(b))
}

// FromPhrase rebuilds the Manager a recovery phrase was produced from.
func FromPhrase(phrase string) (*Manager, error) {
	rawKey, err := mnemonic.Decode(phrase)
	if err != nil {
		return nil, err
	}
	return newManager(rawKey)
}

// newManager takes ownership of rawKey. NewEnclave wipes it after copying.
func newManager(rawKey []byte) (*Manager, error) {
	defer util.WipeBytes(rawKey)

	id, err := fingerprint(rawKey)
	if err != nil {
		return nil, err
	}
	return &Manager{
		id:      id,
		keyType: AES256,
		enclave: memguard.NewEnclave(rawKey),
	}, nil
}

func fingerprint(rawKey []byte) (string, error) {
	sum, err := util.HKDFLen(rawKey, nil, idInfo, 8)
	if err != nil {
		return "", fmt.Errorf("deriving key ID: %w", err)
	}
	return util.HexEncode(sum), nil
}

// ID returns a non-secret fingerprint of the key, safe to log.
func (m *Manager) ID() string {
	return m.id
}

func (m *Manager) Type() Type {
	return m.keyType
}

func (m *Manager) withKey(fn func(rawKey []byte) error) error {
	if m == nil || m.enclave == nil {
		return ErrDestroyed
	}
	buf, err := m.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Phrase returns the 24-word recovery phrase for the key.
func (m *Manager) Phrase() (string, error) {
	var phrase string
	err := m.withKey(func(rawKey []byte) error {
		var err error
		phrase, err = mnemonic.Encode(rawKey)
		return err
	})
	return phrase, err
}

// VerifyPhrase reports whether phrase recovers this exact key.
func (m *Manager) VerifyPhrase(phrase string) bool {
	other, err := FromPhrase(phrase)
	if err != nil {
		return false
	}
	defer other.Destroy()
	return m.Equal(other)
}

// Encrypt seals plaintext into a new envelope.
func (m *Manager) Encrypt(plaintext string) (*envelope.Envelope, error) {
	var env *envelope.Envelope
	err := m.withKey(func(rawKey []byte) error {
		var err error
		env, err = envelope.Seal(rawKey, plaintext)
		return err
	})
	return env, err
}

// Decrypt opens an envelope produced by Encrypt with the same key.
func (m *Manager) Decrypt(env *envelope.Envelope) (string, error) {
	var plaintext string
	err := m.withKey(func(rawKey []byte) error {
		var err error
		plaintext, err = envelope.Open(rawKey, env)
		return err
	})
	return plaintext, err
}

// Equal compares two keys in constant time.
func (m *Manager) Equal(other *Manager) bool {
	if m == nil || other == nil {
		return false
	}
	equal := false
	_ = m.withKey(func(a []byte) error {
		return other.withKey(func(b []byte) error {
			equal = util.ConstantTimeEqual(a, b)
			return nil
		})
	})
	return equal
}

// Copy returns an independent Manager holding the same key.
func (m *Manager) Copy() (*Manager, error) {
	var c *Manager
	err := m.withKey(func(rawKey []byte) error {
		var err error
		c, err = FromBytes(rawKey)
		return err
	})
	return c, err
}

// Destroy drops the enclave. Later operations return ErrDestroyed.
func (m *Manager) Destroy() {
	if m == nil {
		return
	}
	m.enclave = nil
}

// String never includes key material.
func (m *Manager) String() string {
	return fmt.Sprintf("Manager(%s)", m.id)
}
