package storage

import (
	"time"

	"github.com/jmcleod/ironseal/envelope"
)

// Record is the stored form of a task. When encryption is enabled Title and
// Description are empty and the *Enc envelopes carry the content.
type Record struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	TitleEnc       *envelope.Envelope `json:"titleEncrypted,omitempty"`
	Description    string             `json:"description"`
	DescriptionEnc *envelope.Envelope `json:"descriptionEncrypted,omitempty"`
	Completed      bool               `json:"completed"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	Version        uint64             `json:"version"`
}

// Encrypted reports whether any field of r is stored as an envelope.
func (r *Record) Encrypted() bool {
	return r.TitleEnc != nil || r.DescriptionEnc != nil
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.TitleEnc = r.TitleEnc.Clone()
	c.DescriptionEnc = r.DescriptionEnc.Clone()
	return &c
}
