// Package envelope implements the self-describing AEAD envelope used to
// store one encrypted string: ciphertext, nonce, authentication tag and a
// format version, each binary field base64 encoded.
package envelope

import (
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jmcleod/ironseal/internal/util"
)

const (
	KeySize   = util.AESKeySize
	NonceSize = util.GCMNonceSize
	TagSize   = util.GCMTagSize
)

// Envelope format versions.
const (
	// VersionAESGCM is AES-256-GCM. Seal uses it by default.
	VersionAESGCM = "1"
	// VersionChaCha20Poly1305 is ChaCha20-Poly1305 with the same nonce and tag sizes.
	VersionChaCha20Poly1305 = "2"

	CurrentVersion = VersionAESGCM
)

var (
	// ErrDecryption covers every way an envelope can fail to open: missing or
	// malformed fields, wrong key, or tampered ciphertext/tag.
	ErrDecryption = errors.New("decryption failed")
	// ErrInvalidKey is returned when the key is not KeySize bytes.
	ErrInvalidKey = errors.New("invalid envelope key")
	// ErrUnsupportedVersion is returned for an unknown envelope version.
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
)

// Envelope is the wire and storage form of one encrypted string. It is
// immutable once sealed and meaningless without the key that produced it.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	AuthTag    string `json:"authTag"`
	Version    string `json:"version"`
}

// Seal encrypts plaintext under key with the current envelope version.
func Seal(key []byte, plaintext string) (*Envelope, error) {
	return SealVersion(key, plaintext, CurrentVersion)
}

// SealVersion encrypts plaintext under key with the given envelope version.
// Every call draws a fresh random nonce.
func SealVersion(key []byte, plaintext, version string) (*Envelope, error) {
	aead, err := newAEAD(key, version)
	if err != nil {
		return nil, err
	}

	nonce, err := util.RandomBytes(aead.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal returns ciphertext || tag.
	split := len(sealed) - TagSize
	return &Envelope{
		Ciphertext: util.Base64Encode(sealed[:split]),
		Nonce:      util.Base64Encode(nonce),
		AuthTag:    util.Base64Encode(sealed[split:]),
		Version:    version,
	}, nil
}

// Open authenticates and decrypts env with key. No plaintext is returned
// unless the tag verifies.
func Open(key []byte, env *Envelope) (string, error) {
	if env == nil {
		return "", fmt.Errorf("%w: envelope is nil", ErrDecryption)
	}
	if err := env.Validate(); err != nil {
		return "", err
	}

	aead, err := newAEAD(key, env.Version)
	if err != nil {
		if errors.Is(err, ErrUnsupportedVersion) {
			return "", fmt.Errorf("%w: %w", ErrDecryption, err)
		}
		return "", err
	}

	ciphertext, nonce, tag, err := env.decode()
	if err != nil {
		return "", err
	}

	// Rebuild ciphertext || tag without aliasing the decoded buffers.
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}
	if !utf8.Valid(plaintext) {
		util.WipeBytes(plaintext)
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecryption)
	}
	return string(plaintext), nil
}

// Validate checks that every required field is present and that the
// decoded nonce and tag have the expected sizes.
func (e *Envelope) Validate() error {
	switch {
	case e.Nonce == "":
		return fmt.Errorf("%w: missing nonce", ErrDecryption)
	case e.AuthTag == "":
		return fmt.Errorf("%w: missing authTag", ErrDecryption)
	case e.Version == "":
		return fmt.Errorf("%w: missing version", ErrDecryption)
	}
	// An empty plaintext seals to an empty ciphertext, so Ciphertext may be "".
	_, _, _, err := e.decode()
	return err
}

func (e *Envelope) decode() (ciphertext, nonce, tag []byte, err error) {
	if ciphertext, err = util.Base64Decode(e.Ciphertext); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: ciphertext is not valid base64", ErrDecryption)
	}
	if nonce, err = util.Base64Decode(e.Nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: nonce is not valid base64", ErrDecryption)
	}
	if tag, err = util.Base64Decode(e.AuthTag); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: authTag is not valid base64", ErrDecryption)
	}
	if len(nonce) != NonceSize {
		return nil, nil, nil, fmt.Errorf("%w: invalid nonce size: expected %d, got %d", ErrDecryption, NonceSize, len(nonce))
	}
	if len(tag) != TagSize {
		return nil, nil, nil, fmt.Errorf("%w: invalid auth tag size: expected %d, got %d", ErrDecryption, TagSize, len(tag))
	}
	return ciphertext, nonce, tag, nil
}

// Clone returns a copy of e.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// Map returns the envelope in its dictionary form.
func (e *Envelope) Map() map[string]string {
	return map[string]string{
		"ciphertext": e.Ciphertext,
		"nonce":      e.Nonce,
		"authTag":    e.AuthTag,
		"version":    e.Version,
	}
}

// FromMap builds an Envelope from its dictionary form. The legacy keys "iv"
// and "auth_tag" are accepted and a missing version means version 1. The
// ciphertext key must be present, though its value may be empty.
func FromMap(m map[string]string) (*Envelope, error) {
	ciphertext, ok := m["ciphertext"]
	if !ok {
		return nil, fmt.Errorf("%w: missing ciphertext", ErrDecryption)
	}
	return &Envelope{
		Ciphertext: ciphertext,
		Nonce:      firstNonEmpty(m["nonce"], m["iv"]),
		AuthTag:    firstNonEmpty(m["authTag"], m["auth_tag"]),
		Version:    firstNonEmpty(m["version"], VersionAESGCM),
	}, nil
}

// UnmarshalJSON accepts both the current field names and the legacy
// "iv"/"auth_tag" spellings. An absent ciphertext field is rejected.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw struct {
		Ciphertext *string `json:"ciphertext"`
		Nonce      string  `json:"nonce"`
		IV         string  `json:"iv"`
		AuthTag    string  `json:"authTag"`
		AuthTagOld string  `json:"auth_tag"`
		Version    string  `json:"version"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("unmarshaling envelope JSON: %w", err)
	}
	if raw.Ciphertext == nil {
		return fmt.Errorf("%w: missing ciphertext", ErrDecryption)
	}
	e.Ciphertext = *raw.Ciphertext
	e.Nonce = firstNonEmpty(raw.Nonce, raw.IV)
	e.AuthTag = firstNonEmpty(raw.AuthTag, raw.AuthTagOld)
	e.Version = firstNonEmpty(raw.Version, VersionAESGCM)
	return nil
}

func newAEAD(key []byte, version string) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	switch version {
	case VersionAESGCM:
		return util.NewAESGCM(key)
	case VersionChaCha20Poly1305:
		return util.NewChaCha20Poly1305(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
