package keystore

import (
	"fmt"
	"sync"

	"github.com/jmcleod/ironseal/internal/util"
)

// MemoryStorage is a thread-safe in-process Storage for tests and demos.
type MemoryStorage struct {
	mu     sync.RWMutex
	record []byte
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record != nil
}

func (m *MemoryStorage) Load() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.record == nil {
		return nil, fmt.Errorf("%w in memory", ErrKeyNotFound)
	}
	return util.CopyBytes(m.record), nil
}

func (m *MemoryStorage) Save(record []byte) error {
	if len(record) == 0 {
		return fmt.Errorf("%w: refusing to save an empty key record", ErrKeyStorage)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	util.WipeBytes(m.record)
	m.record = util.CopyBytes(record)
	return nil
}

func (m *MemoryStorage) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	util.WipeBytes(m.record)
	m.record = nil
	return nil
}

func (m *MemoryStorage) Path() string {
	return "memory"
}

// Corrupt replaces the stored record without validation, to simulate a
// damaged key file in tests.
func (m *MemoryStorage) Corrupt(record []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = util.CopyBytes(record)
}
