package key

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmcleod/ironseal/internal/util"
)

const recordVersion = 1

// Type identifies the key algorithm in a stored record.
type Type int

// AES256 is the only key type a record may carry.
const AES256 Type = 1

// ErrUnknownType is returned for a key type with no record name.
var ErrUnknownType = errors.New("unknown key type")

var typeNames = map[Type]string{AES256: "AES256"}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func (t Type) MarshalJSON() ([]byte, error) {
	name, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return json.Marshal(name)
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("unmarshaling key type: %w", err)
	}
	for typ, n := range typeNames {
		if n == name {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, name)
}

type jsonKey struct {
	Ver     int    `json:"ver"`
	KeyID   string `json:"keyId"`
	KeyType Type   `json:"keyType"`
	Bytes   []byte `json:"bytes"`
}

// MarshalJSON produces the key record persisted by key storage.
func (m *Manager) MarshalJSON() ([]byte, error) {
	var out []byte
	err := m.withKey(func(rawKey []byte) error {
		var err error
		out, err = json.Marshal(&jsonKey{
			Ver:     recordVersion,
			KeyID:   m.id,
			KeyType: m.keyType,
			Bytes:   rawKey,
		})
		return err
	})
	return out, err
}

// Unmarshal rebuilds a Manager from a record written by MarshalJSON. The
// stored key ID must match the key bytes, which catches most corruption.
func Unmarshal(message json.RawMessage) (*Manager, error) {
	jk := &jsonKey{}
	if err := json.Unmarshal(message, jk); err != nil {
		return nil, fmt.Errorf("unmarshaling key JSON: %w", err)
	}
	defer util.WipeBytes(jk.Bytes)

	if jk.Ver != recordVersion {
		return nil, fmt.Errorf("%w: unsupported record version %d", ErrInvalidKey, jk.Ver)
	}
	if jk.KeyType != AES256 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, ErrUnknownType)
	}

	m, err := FromBytes(jk.Bytes)
	if err != nil {
		return nil, err
	}
	if m.id != jk.KeyID {
		m.Destroy()
		return nil, fmt.Errorf("%w: key ID does not match key material", ErrInvalidKey)
	}
	return m, nil
}
