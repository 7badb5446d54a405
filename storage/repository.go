// Package storage provides the storage abstraction layer for task records.
// Protected fields reach a Repository already sealed; repositories never see
// the master key.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record or collection does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrCASFailed is returned when a compare-and-swap version check fails.
	ErrCASFailed = errors.New("CAS version mismatch")
)

// Repository defines the interface for task record storage. Records are
// grouped into named collections.
type Repository interface {
	Put(collection string, record *Record) error
	Get(collection string, id string) (*Record, error)
	List(collection string) ([]string, error)
	Delete(collection string, id string) error
	// PutCAS writes record only if the stored version equals
	// expectedVersion. An expectedVersion of 0 means create-only.
	PutCAS(collection string, expectedVersion uint64, record *Record) error
}
