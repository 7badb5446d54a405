package tasks

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironseal/encryption"
	"github.com/jmcleod/ironseal/envelope"
	"github.com/jmcleod/ironseal/keystore"
	"github.com/jmcleod/ironseal/storage"
	"github.com/jmcleod/ironseal/storage/bbolt"
	"github.com/jmcleod/ironseal/storage/memory"
)

type fixture struct {
	svc   *encryption.Service
	repo  *memory.Repository
	store *Store
}

func newFixture(t *testing.T, enabled bool) *fixture {
	t.Helper()
	svc := encryption.New(keystore.NewMemoryStorage())
	t.Cleanup(svc.Close)
	if enabled {
		enableEncryption(t, svc)
	}
	repo := memory.NewRepository()
	return &fixture{svc: svc, repo: repo, store: NewStore(repo, svc)}
}

func enableEncryption(t *testing.T, svc *encryption.Service) {
	t.Helper()
	m, _, err := svc.Setup()
	require.NoError(t, err)
	defer m.Destroy()
	require.NoError(t, svc.SaveManager(m))
}

func TestStore_CreateEncrypted(t *testing.T) {
	f := newFixture(t, true)

	task, err := f.store.Create("Buy milk", "two litres, semi-skimmed")
	require.NoError(t, err)
	assert.True(t, task.Encrypted)
	assert.Equal(t, uint64(1), task.Version)

	rec, err := f.repo.Get(Collection, task.ID)
	require.NoError(t, err)
	assert.Empty(t, rec.Title)
	assert.Empty(t, rec.Description)
	require.NotNil(t, rec.TitleEnc)
	require.NotNil(t, rec.DescriptionEnc)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Buy milk")
	assert.NotContains(t, string(data), "semi-skimmed")

	got, err := f.store.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, "two litres, semi-skimmed", got.Description)
	assert.True(t, got.Encrypted)
}

func TestStore_CreatePlain(t *testing.T) {
	f := newFixture(t, false)

	task, err := f.store.Create("Buy milk", "")
	require.NoError(t, err)
	assert.False(t, task.Encrypted)

	rec, err := f.repo.Get(Collection, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", rec.Title)
	assert.Nil(t, rec.TitleEnc)
}

func TestStore_CreateEmptyTitle(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.store.Create("   ", "desc")
	require.ErrorIs(t, err, ErrEmptyTitle)
}

func TestStore_LegacyRecordsAfterEnabling(t *testing.T) {
	f := newFixture(t, false)
	legacy, err := f.store.Create("old task", "written before encryption")
	require.NoError(t, err)

	enableEncryption(t, f.svc)
	fresh, err := f.store.Create("new task", "")
	require.NoError(t, err)
	assert.True(t, fresh.Encrypted)

	tasks, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	byID := map[string]*Task{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	assert.Equal(t, "old task", byID[legacy.ID].Title)
	assert.False(t, byID[legacy.ID].Encrypted)
	assert.Equal(t, "new task", byID[fresh.ID].Title)
	assert.True(t, byID[fresh.ID].Encrypted)
}

func TestStore_Update(t *testing.T) {
	f := newFixture(t, true)

	task, err := f.store.Create("draft", "")
	require.NoError(t, err)

	task.Title = "final"
	task.Completed = true
	updated, err := f.store.Update(task)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), updated.Version)

	got, err := f.store.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.True(t, got.Completed)

	// Stale version.
	_, err = f.store.Update(task)
	require.ErrorIs(t, err, ErrConflict)

	updated.Title = ""
	_, err = f.store.Update(updated)
	require.ErrorIs(t, err, ErrEmptyTitle)
}

func TestStore_ListOrder(t *testing.T) {
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := encryption.New(keystore.NewMemoryStorage())
	defer svc.Close()
	store := NewStore(memory.NewRepository(), svc, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))

	for _, title := range []string{"first", "second", "third"} {
		_, err := store.Create(title, "")
		require.NoError(t, err)
	}

	tasks, err := store.List()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "first", tasks[0].Title)
	assert.Equal(t, "second", tasks[1].Title)
	assert.Equal(t, "third", tasks[2].Title)
}

func TestStore_TamperedRecord(t *testing.T) {
	f := newFixture(t, true)
	task, err := f.store.Create("secret", "")
	require.NoError(t, err)

	rec, err := f.repo.Get(Collection, task.ID)
	require.NoError(t, err)
	rec.Title = "attacker text"
	rec.TitleEnc.Ciphertext = "AAAA"
	require.NoError(t, f.repo.Put(Collection, rec))

	_, err = f.store.Get(task.ID)
	require.ErrorIs(t, err, envelope.ErrDecryption)
}

func TestStore_KeyDeleted(t *testing.T) {
	f := newFixture(t, true)
	task, err := f.store.Create("secret", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteKey())
	got, err := f.store.Get(task.ID)
	require.NoError(t, err)
	assert.True(t, got.Encrypted)
	assert.Empty(t, got.Title, "ciphertext must not leak into the title")
}

func TestStore_Delete(t *testing.T) {
	f := newFixture(t, true)
	task, err := f.store.Create("temp", "")
	require.NoError(t, err)

	require.NoError(t, f.store.Delete(task.ID))
	_, err = f.store.Get(task.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, f.store.Delete(task.ID), storage.ErrNotFound)
}

func TestStore_BBolt(t *testing.T) {
	repo, err := bbolt.NewRepositoryFromFile(filepath.Join(t.TempDir(), "tasks.db"), nil)
	require.NoError(t, err)
	defer repo.Close()

	svc := encryption.New(keystore.NewMemoryStorage())
	defer svc.Close()
	enableEncryption(t, svc)

	store := NewStore(repo, svc)
	task, err := store.Create("persisted", "with description")
	require.NoError(t, err)

	got, err := store.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Title)
	assert.Equal(t, "with description", got.Description)
	assert.True(t, got.CreatedAt.Equal(task.CreatedAt))
}
