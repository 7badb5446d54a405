// Package encryption manages the lifecycle of the local master key and
// encrypts individual text fields with it.
package encryption

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmcleod/ironseal/envelope"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/key"
	"github.com/jmcleod/ironseal/keystore"
)

// Service owns the master key for the process. The key is loaded from
// storage on first use and cached until it is replaced, deleted or the
// service is closed.
type Service struct {
	mu      sync.Mutex
	store   keystore.Storage
	logger  *slog.Logger
	manager *key.Manager
}

// New creates a Service backed by store.
func New(store keystore.Storage, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadLocked returns the cached manager, loading it from storage if needed.
// The caller must hold s.mu.
func (s *Service) loadLocked() (*key.Manager, error) {
	if s.manager != nil {
		return s.manager, nil
	}
	record, err := s.store.Load()
	if err != nil {
		if errors.Is(err, keystore.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoKey, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrKeyInvalid, err)
	}
	defer util.WipeBytes(record)

	m, err := key.Unmarshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyInvalid, err)
	}
	s.manager = m
	return m, nil
}

func (s *Service) dropLocked() {
	if s.manager != nil {
		s.manager.Destroy()
		s.manager = nil
	}
}

// Setup generates a new key and its recovery phrase. Nothing is persisted
// until SaveManager is called, so the caller can have the user confirm the
// phrase first.
func (s *Service) Setup() (*key.Manager, string, error) {
	m, phrase, err := generate()
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("encryption key generated", slog.String("key_id", m.ID()))
	return m, phrase, nil
}

// RotateKey generates a replacement key. Like Setup it does not persist,
// and it does not touch envelopes sealed under the previous key.
func (s *Service) RotateKey() (*key.Manager, string, error) {
	m, phrase, err := generate()
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	previous := ""
	if s.manager != nil {
		previous = s.manager.ID()
	}
	s.mu.Unlock()

	s.logger.Info("encryption key rotation prepared",
		slog.String("key_id", m.ID()),
		slog.String("previous_key_id", previous))
	return m, phrase, nil
}

func generate() (*key.Manager, string, error) {
	m, err := key.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("generating key: %w", err)
	}
	phrase, err := m.Phrase()
	if err != nil {
		m.Destroy()
		return nil, "", fmt.Errorf("deriving recovery phrase: %w", err)
	}
	return m, phrase, nil
}

// SaveManager persists m and makes it the active key. The service keeps
// its own copy, so the caller may Destroy m afterwards.
func (s *Service) SaveManager(m *key.Manager) error {
	if m == nil {
		return fmt.Errorf("key manager must not be nil")
	}
	record, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("serializing key: %w", err)
	}
	defer util.WipeBytes(record)

	active, err := m.Copy()
	if err != nil {
		return fmt.Errorf("copying key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(record); err != nil {
		active.Destroy()
		return fmt.Errorf("saving key: %w", err)
	}
	s.dropLocked()
	s.manager = active

	s.logger.Info("encryption key saved",
		slog.String("key_id", active.ID()),
		slog.String("path", s.store.Path()))
	return nil
}

// Status reports the key state. Load failures are reported as Invalid
// rather than returned.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.Exists() {
		s.dropLocked()
		return Status{State: Uninitialized}
	}

	st := Status{
		KeyFileExists: true,
		KeyFilePath:   s.store.Path(),
	}
	m, err := s.loadLocked()
	if err != nil {
		s.logger.Warn("encryption key failed to load", "error", err)
		st.State = Invalid
		st.Error = err.Error()
		return st
	}
	st.State = Initialized
	st.Enabled = true
	st.KeyValid = true
	st.KeyID = m.ID()
	return st
}

// Enabled reports whether a valid key is set up.
func (s *Service) Enabled() bool {
	return s.Status().Enabled
}

// RecoveryPhrase returns the phrase for the active key.
func (s *Service) RecoveryPhrase() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		return "", err
	}
	return m.Phrase()
}

// VerifyRecoveryPhrase reports whether phrase reconstructs the active key.
func (s *Service) VerifyRecoveryPhrase(phrase string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		return false
	}
	return m.VerifyPhrase(phrase)
}

// Recover rebuilds a key from its recovery phrase. No key file is needed;
// call SaveManager to make the result durable.
func (s *Service) Recover(phrase string) (*key.Manager, error) {
	m, err := key.FromPhrase(phrase)
	if err != nil {
		s.logger.Warn("encryption key recovery failed", "error", err)
		return nil, err
	}
	s.logger.Info("encryption key recovered", slog.String("key_id", m.ID()))
	return m, nil
}

// DeleteKey removes the stored key. Deleting when no key exists is not an
// error.
func (s *Service) DeleteKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ""
	if s.manager != nil {
		id = s.manager.ID()
	}
	if err := s.store.Delete(); err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	s.dropLocked()
	s.logger.Info("encryption key deleted", slog.String("key_id", id))
	return nil
}

// Encrypt seals text under the active key.
func (s *Service) Encrypt(text string) (*envelope.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return m.Encrypt(text)
}

// Decrypt opens env with the active key.
func (s *Service) Decrypt(env *envelope.Envelope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		return "", err
	}
	return m.Decrypt(env)
}

// EncryptMap seals every value independently. Map keys are kept as-is.
func (s *Service) EncryptMap(values map[string]string) (map[string]*envelope.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*envelope.Envelope, len(values))
	for name, value := range values {
		env, err := m.Encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("encrypting %q: %w", name, err)
		}
		out[name] = env
	}
	return out, nil
}

// DecryptMap is the inverse of EncryptMap.
func (s *Service) DecryptMap(values map[string]*envelope.Envelope) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for name, env := range values {
		plaintext, err := m.Decrypt(env)
		if err != nil {
			return nil, fmt.Errorf("decrypting %q: %w", name, err)
		}
		out[name] = plaintext
	}
	return out, nil
}

// Close destroys the cached key. The service can still be used afterwards;
// the key is reloaded from storage on demand.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
}
