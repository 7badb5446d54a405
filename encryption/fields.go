package encryption

import (
	"errors"
	"fmt"

	"github.com/jmcleod/ironseal/envelope"
)

// Fields is the storage form of a record's two protected text fields.
// With encryption enabled the plaintext fields are empty and the envelopes
// are set.
type Fields struct {
	Primary      string
	PrimaryEnc   *envelope.Envelope
	Secondary    string
	SecondaryEnc *envelope.Envelope
}

// FieldSealer is what repositories depend on to protect record fields.
type FieldSealer interface {
	PrepareForStorage(primary, secondary string) (Fields, error)
	Extract(f Fields) (primary, secondary string, err error)
}

var _ FieldSealer = (*Service)(nil)

// PrepareForStorage encrypts primary and secondary when a valid key is set
// up and passes them through unchanged otherwise. An empty secondary gets
// no envelope.
func (s *Service) PrepareForStorage(primary, secondary string) (Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		s.logDisabled(err)
		return Fields{Primary: primary, Secondary: secondary}, nil
	}

	primaryEnc, err := m.Encrypt(primary)
	if err != nil {
		return Fields{}, fmt.Errorf("encrypting primary field: %w", err)
	}
	f := Fields{PrimaryEnc: primaryEnc}
	if secondary != "" {
		f.SecondaryEnc, err = m.Encrypt(secondary)
		if err != nil {
			return Fields{}, fmt.Errorf("encrypting secondary field: %w", err)
		}
	}
	return f, nil
}

// Extract reverses PrepareForStorage. Without a valid key, or for records
// written before encryption was set up, the plaintext fields are returned
// as stored. With a key loaded, an envelope that fails to open is an error
// and the plaintext fields are never used in its place.
func (s *Service) Extract(f Fields) (string, string, error) {
	if f.PrimaryEnc == nil && f.SecondaryEnc == nil {
		return f.Primary, f.Secondary, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		s.logDisabled(err)
		return f.Primary, f.Secondary, nil
	}

	primary := f.Primary
	if f.PrimaryEnc != nil {
		if primary, err = m.Decrypt(f.PrimaryEnc); err != nil {
			return "", "", fmt.Errorf("decrypting primary field: %w", err)
		}
	}
	secondary := f.Secondary
	if f.SecondaryEnc != nil {
		if secondary, err = m.Decrypt(f.SecondaryEnc); err != nil {
			return "", "", fmt.Errorf("decrypting secondary field: %w", err)
		}
	}
	return primary, secondary, nil
}

// logDisabled records why fields are passing through in the clear. A
// missing key is the normal disabled state; anything else is worth a warning.
func (s *Service) logDisabled(err error) {
	if errors.Is(err, ErrNoKey) {
		return
	}
	s.logger.Warn("encryption disabled: key failed to load", "error", err)
}
