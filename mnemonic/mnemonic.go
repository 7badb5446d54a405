// Package mnemonic converts a 256-bit key to and from a 24-word BIP39
// recovery phrase (english wordlist, 8-bit SHA-256 checksum).
package mnemonic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/jmcleod/ironseal/internal/util"
)

const (
	// KeySize is the only key length the codec accepts.
	KeySize = 32
	// WordCount is the number of words produced for a KeySize key.
	WordCount = 24
)

var (
	// ErrInvalidRecoveryPhrase is returned for a wrong word count, an unknown
	// word, or a checksum mismatch.
	ErrInvalidRecoveryPhrase = errors.New("invalid recovery phrase")
	// ErrInvalidKeyLength is returned when Encode is given anything but KeySize bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")
)

// Encode maps key plus its checksum onto WordCount words.
func Encode(key []byte) (string, error) {
	if len(key) != KeySize {
		return "", fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(key), KeySize)
	}
	phrase, err := bip39.NewMnemonic(key)
	if err != nil {
		return "", fmt.Errorf("encoding recovery phrase: %w", err)
	}
	return phrase, nil
}

// Decode validates phrase and returns the key it encodes. Error messages
// never include the words themselves.
func Decode(phrase string) ([]byte, error) {
	words := Words(phrase)
	if len(words) != WordCount {
		return nil, fmt.Errorf("%w: must have exactly %d words, got %d", ErrInvalidRecoveryPhrase, WordCount, len(words))
	}
	for i, w := range words {
		if _, ok := bip39.GetWordIndex(w); !ok {
			return nil, fmt.Errorf("%w: word %d is not in the wordlist", ErrInvalidRecoveryPhrase, i+1)
		}
	}

	key, err := bip39.EntropyFromMnemonic(strings.Join(words, " "))
	if err != nil {
		if errors.Is(err, bip39.ErrChecksumIncorrect) {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidRecoveryPhrase)
		}
		return nil, fmt.Errorf("%w: malformed phrase", ErrInvalidRecoveryPhrase)
	}
	if len(key) != KeySize {
		util.WipeBytes(key)
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidRecoveryPhrase, len(key), KeySize)
	}
	return key, nil
}

// Valid reports whether phrase decodes cleanly.
func Valid(phrase string) bool {
	key, err := Decode(phrase)
	if err != nil {
		return false
	}
	util.WipeBytes(key)
	return true
}

// Normalize applies NFKD, lower-cases, and collapses every whitespace run to
// a single space.
func Normalize(phrase string) string {
	return strings.Join(Words(phrase), " ")
}

// Words splits a normalized phrase into its words.
func Words(phrase string) []string {
	return strings.Fields(strings.ToLower(util.Normalize(phrase)))
}

// Hint returns the first n words, for reminding a user which phrase a key
// belongs to.
func Hint(phrase string, n int) string {
	words := Words(phrase)
	if n < 0 {
		n = 0
	}
	if n > len(words) {
		n = len(words)
	}
	return strings.Join(words[:n], " ")
}
