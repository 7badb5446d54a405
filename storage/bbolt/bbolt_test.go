package bbolt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmcleod/ironseal/envelope"
	"github.com/jmcleod/ironseal/storage"
	"go.etcd.io/bbolt"
)

func newTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "tasks-test.db"), 0600, nil)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(id string, version uint64) *storage.Record {
	return &storage.Record{
		ID:        id,
		TitleEnc:  &envelope.Envelope{Ciphertext: "Y3Q=", Nonce: "bm9uY2U=", AuthTag: "dGFn", Version: "1"},
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Version:   version,
	}
}

func TestBBoltStorage(t *testing.T) {
	s := NewRepository(newTestDB(t))
	collection := "tasks"
	rec := testRecord("i1", 1)

	t.Run("PutGet", func(t *testing.T) {
		if err := s.Put(collection, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := s.Get(collection, "i1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Version != rec.Version {
			t.Errorf("expected version %d, got %d", rec.Version, got.Version)
		}
		if got.TitleEnc == nil || *got.TitleEnc != *rec.TitleEnc {
			t.Errorf("envelope not preserved: %+v", got.TitleEnc)
		}
		if got.DescriptionEnc != nil {
			t.Errorf("expected no description envelope, got %+v", got.DescriptionEnc)
		}
		if !got.CreatedAt.Equal(rec.CreatedAt) {
			t.Errorf("expected created %v, got %v", rec.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("List", func(t *testing.T) {
		s.Put(collection, testRecord("i2", 1))
		ids, err := s.List(collection)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != "i1" || ids[1] != "i2" {
			t.Errorf("expected [i1 i2], got %v", ids)
		}
	})

	t.Run("PutCAS create-only", func(t *testing.T) {
		if err := s.PutCAS(collection, 0, testRecord("cas1", 1)); err != nil {
			t.Fatalf("PutCAS (new) failed: %v", err)
		}
		if err := s.PutCAS(collection, 0, testRecord("cas1", 1)); err != storage.ErrCASFailed {
			t.Errorf("expected ErrCASFailed, got %v", err)
		}
	})

	t.Run("PutCAS version match", func(t *testing.T) {
		if err := s.Put(collection, testRecord("cas2", 1)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.PutCAS(collection, 1, testRecord("cas2", 2)); err != nil {
			t.Fatalf("PutCAS (version match) failed: %v", err)
		}
		got, _ := s.Get(collection, "cas2")
		if got.Version != 2 {
			t.Errorf("expected version 2, got %d", got.Version)
		}
	})

	t.Run("PutCAS version mismatch", func(t *testing.T) {
		s.Put(collection, testRecord("cas3", 5))
		if err := s.PutCAS(collection, 3, testRecord("cas3", 6)); err != storage.ErrCASFailed {
			t.Errorf("expected ErrCASFailed, got %v", err)
		}
	})

	t.Run("PutCAS non-zero on missing record", func(t *testing.T) {
		if err := s.PutCAS(collection, 1, testRecord("cas-missing", 2)); err != storage.ErrCASFailed {
			t.Errorf("expected ErrCASFailed for non-zero version on missing record, got %v", err)
		}
	})

	t.Run("Get Errors", func(t *testing.T) {
		if _, err := s.Get("nonexistent", "i1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for nonexistent collection, got %v", err)
		}
		if _, err := s.Get(collection, "nonexistent-record"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for nonexistent record, got %v", err)
		}
	})

	t.Run("List Nonexistent Collection", func(t *testing.T) {
		ids, err := s.List("nonexistent")
		if err != nil {
			t.Errorf("expected no error for nonexistent collection in List, got %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected 0 ids, got %d", len(ids))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(collection, "i2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := s.Delete(collection, "i2"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := s.Delete("nonexistent", "i2"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Put without ID", func(t *testing.T) {
		if err := s.Put(collection, &storage.Record{}); err == nil {
			t.Error("expected error for record without ID")
		}
	})
}

func TestBBoltStorage_NoPlaintextOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	s, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("NewRepositoryFromFile failed: %v", err)
	}
	if err := s.Put("tasks", testRecord("t1", 1)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"titleEncrypted"`) {
		t.Error("expected encrypted title field in stored record")
	}
}

func TestNewRepositoryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bbolt-file-test.db")

	s, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("NewRepositoryFromFile failed: %v", err)
	}
	if err := s.Put("tasks", testRecord("a", 1)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get("tasks", "a"); err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", fi.Mode().Perm())
	}

	if _, err := NewRepositoryFromFile(filepath.Join(t.TempDir(), "missing", "dir", "x.db"), nil); err == nil {
		t.Error("expected error opening db in missing directory")
	}
}
