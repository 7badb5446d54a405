// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jmcleod/ironseal/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string]*storage.Record
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string]*storage.Record)}
}

func (r *Repository) Put(collection string, record *storage.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record must have an ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(collection, record)
	return nil
}

func (r *Repository) putLocked(collection string, record *storage.Record) {
	if _, ok := r.data[collection]; !ok {
		r.data[collection] = make(map[string]*storage.Record)
	}
	r.data[collection][record.ID] = record.Clone()
}

func (r *Repository) Get(collection, id string) (*storage.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(collection, id)
}

func (r *Repository) getLocked(collection, id string) (*storage.Record, error) {
	rec, ok := r.data[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, storage.ErrNotFound)
	}
	return rec.Clone(), nil
}

// List returns record IDs in lexical order.
func (r *Repository) List(collection string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.data[collection]))
	for id := range r.data[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Repository) Delete(collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, storage.ErrNotFound)
	}
	delete(r.data[collection], id)
	return nil
}

func (r *Repository) PutCAS(collection string, expectedVersion uint64, record *storage.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record must have an ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.getLocked(collection, record.ID)
	if err != nil {
		if expectedVersion != 0 {
			return storage.ErrCASFailed
		}
		r.putLocked(collection, record)
		return nil
	}
	if existing.Version != expectedVersion {
		return storage.ErrCASFailed
	}
	r.putLocked(collection, record)
	return nil
}
