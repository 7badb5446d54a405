package encryption

import "errors"

var (
	// ErrNoKey indicates an operation needs the master key and none is set up.
	ErrNoKey = errors.New("encryption key not set up")
	// ErrKeyInvalid indicates a key file exists but could not be loaded.
	ErrKeyInvalid = errors.New("encryption key file is invalid")
)
