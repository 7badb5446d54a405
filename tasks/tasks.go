// Package tasks stores tasks whose title and description are sealed by an
// encryption.FieldSealer before they reach the repository.
package tasks

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmcleod/ironseal/encryption"
	"github.com/jmcleod/ironseal/internal/uuid"
	"github.com/jmcleod/ironseal/storage"
)

// Collection is the repository collection tasks are stored in.
const Collection = "tasks"

var (
	// ErrEmptyTitle is returned when a task has no title.
	ErrEmptyTitle = errors.New("task title must not be empty")
	// ErrConflict is returned when a task changed since it was read.
	ErrConflict = errors.New("task was modified concurrently")
)

// Task is the plaintext view of a stored task.
type Task struct {
	ID          string
	Title       string
	Description string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     uint64
	// Encrypted reports whether the stored record holds envelopes.
	Encrypted bool
}

// Store creates and reads tasks. It never holds the master key; every
// protected field passes through the sealer.
type Store struct {
	repo   storage.Repository
	sealer encryption.FieldSealer
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a Store writing to repo.
func NewStore(repo storage.Repository, sealer encryption.FieldSealer, opts ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		sealer: sealer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new task.
func (s *Store) Create(title, description string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	now := s.now().UTC()
	t := &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	rec, err := s.seal(t)
	if err != nil {
		return nil, err
	}
	if err := s.repo.PutCAS(Collection, 0, rec); err != nil {
		return nil, fmt.Errorf("storing task: %w", err)
	}
	t.Encrypted = rec.Encrypted()
	return t, nil
}

// Get returns the task with the given ID.
func (s *Store) Get(id string) (*Task, error) {
	rec, err := s.repo.Get(Collection, id)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	return s.open(rec)
}

// Update writes t back. t.Version must match the stored version; on
// success the returned task carries the next version.
func (s *Store) Update(t *Task) (*Task, error) {
	if t == nil {
		return nil, fmt.Errorf("task must not be nil")
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	next := *t
	next.Title = title
	next.Version = t.Version + 1
	next.UpdatedAt = s.now().UTC()

	rec, err := s.seal(&next)
	if err != nil {
		return nil, err
	}
	if err := s.repo.PutCAS(Collection, t.Version, rec); err != nil {
		if errors.Is(err, storage.ErrCASFailed) {
			return nil, fmt.Errorf("%w: %s", ErrConflict, t.ID)
		}
		return nil, fmt.Errorf("updating task: %w", err)
	}
	next.Encrypted = rec.Encrypted()
	return &next, nil
}

// List returns all tasks, oldest first.
func (s *Store) List() ([]*Task, error) {
	ids, err := s.repo.List(Collection)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	out := make([]*Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a task.
func (s *Store) Delete(id string) error {
	if err := s.repo.Delete(Collection, id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

func (s *Store) seal(t *Task) (*storage.Record, error) {
	f, err := s.sealer.PrepareForStorage(t.Title, t.Description)
	if err != nil {
		return nil, fmt.Errorf("preparing task %s: %w", t.ID, err)
	}
	return &storage.Record{
		ID:             t.ID,
		Title:          f.Primary,
		TitleEnc:       f.PrimaryEnc,
		Description:    f.Secondary,
		DescriptionEnc: f.SecondaryEnc,
		Completed:      t.Completed,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Version:        t.Version,
	}, nil
}

func (s *Store) open(rec *storage.Record) (*Task, error) {
	title, description, err := s.sealer.Extract(encryption.Fields{
		Primary:      rec.Title,
		PrimaryEnc:   rec.TitleEnc,
		Secondary:    rec.Description,
		SecondaryEnc: rec.DescriptionEnc,
	})
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", rec.ID, err)
	}
	return &Task{
		ID:          rec.ID,
		Title:       title,
		Description: description,
		Completed:   rec.Completed,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Version:     rec.Version,
		Encrypted:   rec.Encrypted(),
	}, nil
}
