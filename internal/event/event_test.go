package event_test

import (
	"testing"
	"time"

	"github.com/harborlab/leasealert/internal/event"
)

func TestParse(t *testing.T) {
	raw := []byte(`{
		"id": "evt-1",
		"source": "sandbox-leasing",
		"type": "LeaseApproved",
		"time": "2026-08-01T10:00:00Z",
		"detail": {"accountId": "A1", "leaseId": "L1"}
	}`)

	env, err := event.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env.ID != "evt-1" {
		t.Errorf("ID = %q, want evt-1", env.ID)
	}
	if env.Type != "LeaseApproved" {
		t.Errorf("Type = %q, want LeaseApproved", env.Type)
	}
	if env.OccurredAt != time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) {
		t.Errorf("OccurredAt = %v", env.OccurredAt)
	}
	if env.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}
	if got := env.Field("accountId"); got != "A1" {
		t.Errorf("Field(accountId) = %q, want A1", got)
	}
	if got := env.Field("missing"); got != "" {
		t.Errorf("Field(missing) = %q, want empty", got)
	}
}

func TestParseDefaults(t *testing.T) {
	env, err := event.Parse([]byte(`{"type": "LeaseExpired", "detail": {}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env.ID == "" {
		t.Error("missing id was not generated")
	}
	if env.OccurredAt.IsZero() {
		t.Error("missing time was not defaulted")
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := event.Parse([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
