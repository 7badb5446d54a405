package encryption

import "encoding/json"

// State is the lifecycle state of the master key.
type State int

const (
	// Uninitialized means no key record is stored.
	Uninitialized State = iota
	// Initialized means a key record is stored and loads.
	Initialized
	// Invalid means a key record is stored but fails to load.
	Invalid
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is a point-in-time snapshot of the key. It never carries key
// material.
type Status struct {
	State         State  `json:"state"`
	Enabled       bool   `json:"enabled"`
	KeyFileExists bool   `json:"keyFileExists"`
	KeyFilePath   string `json:"keyFilePath,omitempty"`
	KeyValid      bool   `json:"keyValid"`
	KeyID         string `json:"keyId,omitempty"`
	Error         string `json:"error,omitempty"`
}
