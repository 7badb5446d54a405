package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jmcleod/ironseal/internal/util"
)

const (
	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600
)

// FileOption configures a FileStorage.
type FileOption func(*FileStorage)

// WithFileName overrides DefaultKeyFileName.
func WithFileName(name string) FileOption {
	return func(s *FileStorage) {
		s.name = name
	}
}

// WithPassphrase seals the record under an Argon2id-derived key before it
// is written, and requires the same passphrase to load it.
func WithPassphrase(passphrase string) FileOption {
	return func(s *FileStorage) {
		s.passphrase = passphrase
	}
}

// WithKDFParams sets the Argon2id parameters used for new sealed files.
func WithKDFParams(params util.Argon2idParams) FileOption {
	return func(s *FileStorage) {
		s.kdfParams = params
	}
}

// FileStorage keeps the key record in a single owner-only file.
type FileStorage struct {
	dir        string
	name       string
	passphrase string
	kdfParams  util.Argon2idParams
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage returns a FileStorage rooted at dir. The directory is
// created on first Save.
func NewFileStorage(dir string, opts ...FileOption) *FileStorage {
	s := &FileStorage{
		dir:       dir,
		name:      DefaultKeyFileName,
		kdfParams: util.DefaultArgon2idParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileStorage) Path() string {
	return filepath.Join(s.dir, s.name)
}

func (s *FileStorage) Exists() bool {
	_, err := os.Lstat(s.Path())
	return err == nil
}

func (s *FileStorage) Load() ([]byte, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrKeyNotFound, s.Path())
		}
		return nil, fmt.Errorf("%w: reading key file: %w", ErrKeyStorage, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: key file is empty", ErrKeyStorage)
	}

	sf, ok := parseSealedFile(data)
	if !ok {
		return data, nil
	}
	if s.passphrase == "" {
		return nil, fmt.Errorf("%w: %w", ErrKeyStorage, ErrPassphrase)
	}
	record, err := sf.open(s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyStorage, err)
	}
	return record, nil
}

// Save writes record to a temp file in the same directory and renames it
// over the key file. os.CreateTemp opens with 0600, so the key never sits
// in a file other users could read.
func (s *FileStorage) Save(record []byte) error {
	if len(record) == 0 {
		return fmt.Errorf("%w: refusing to save an empty key record", ErrKeyStorage)
	}

	payload := record
	if s.passphrase != "" {
		sealed, err := sealRecord(record, s.passphrase, s.kdfParams)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrKeyStorage, err)
		}
		payload = sealed
	}

	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("%w: creating key directory: %w", ErrKeyStorage, err)
	}

	tmp, err := os.CreateTemp(s.dir, s.name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp key file: %w", ErrKeyStorage, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		return fmt.Errorf("%w: restricting temp key file: %w", ErrKeyStorage, err)
	}
	if _, err := tmp.Write(payload); err != nil {
		return fmt.Errorf("%w: writing temp key file: %w", ErrKeyStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing temp key file: %w", ErrKeyStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp key file: %w", ErrKeyStorage, err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("%w: replacing key file: %w", ErrKeyStorage, err)
	}
	committed = true

	syncDir(s.dir)
	return nil
}

func (s *FileStorage) Delete() error {
	err := os.Remove(s.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: deleting key file: %w", ErrKeyStorage, err)
	}
	return nil
}

// Sealed reports whether the file on disk is passphrase protected.
func (s *FileStorage) Sealed() bool {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return false
	}
	_, ok := parseSealedFile(bytes.TrimSpace(data))
	return ok
}

// Mode returns the permission bits of the key file.
func (s *FileStorage) Mode() (fs.FileMode, error) {
	fi, err := os.Stat(s.Path())
	if err != nil {
		return 0, err
	}
	return fi.Mode().Perm(), nil
}

// syncDir best-effort flushes the rename to disk.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}

