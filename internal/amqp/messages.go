package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChangeKind names the mutation that produced an EntryChangeMessage.
type ChangeKind string

const (
	ChangeSaved    ChangeKind = "saved"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeCleared  ChangeKind = "cleared"
	ChangeRestored ChangeKind = "restored"
	ChangeImported ChangeKind = "imported"
)

// EntryChangeMessage announces that the entry store changed.
// It carries only what changed; consumers re-read the store for content.
type EntryChangeMessage struct {
	ID        string     `json:"id"`
	Kind      ChangeKind `json:"kind"`
	Dates     []string   `json:"dates,omitempty"`
	Count     int        `json:"count"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewEntryChangeMessage creates a message with a fresh ID. Count defaults
// to the number of dates.
func NewEntryChangeMessage(kind ChangeKind, dates ...string) *EntryChangeMessage {
	return &EntryChangeMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Dates:     dates,
		Count:     len(dates),
		Timestamp: time.Now(),
	}
}

// WithCount overrides the number of affected entries.
func (m *EntryChangeMessage) WithCount(n int) *EntryChangeMessage {
	m.Count = n
	return m
}

func (m *EntryChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryChangeMessageFromJSON decodes a message body.
func EntryChangeMessageFromJSON(data []byte) (*EntryChangeMessage, error) {
	var msg EntryChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
