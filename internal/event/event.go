package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical input model for all incoming events.
// Detail carries the event-type-specific payload and is validated
// against a per-type schema before any further processing.
type Envelope struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Type       string          `json:"type"` // "LeaseApproved", "AccountQuarantined", etc.
	OccurredAt time.Time       `json:"time"`
	ReceivedAt time.Time       `json:"-"`
	Detail     json.RawMessage `json:"detail"`
}

// Parse decodes a raw inbound event and normalizes it: a missing id gets
// a generated one (the upstream source is supposed to set it; a generated
// id simply disables dedup for that event), a missing timestamp becomes
// the receive time.
func Parse(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	now := time.Now().UTC()
	env.ReceivedAt = now
	if env.ID == "" {
		env.ID = uuid.New().String()
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	return &env, nil
}

// Field returns a string field from Detail, or "" when absent. Used by
// enrichment to pull lookup keys out of the (already validated) payload.
func (e *Envelope) Field(name string) string {
	var m map[string]interface{}
	if err := json.Unmarshal(e.Detail, &m); err != nil {
		return ""
	}
	if s, ok := m[name].(string); ok {
		return s
	}
	return ""
}
