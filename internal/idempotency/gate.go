// Package idempotency guards the pipeline against duplicate processing.
// The upstream source delivers at least once, so concurrent invocations
// for the same event id are expected; exactly one may win the reservation.
package idempotency

import "context"

// Outcome is the result of attempting to reserve an event id.
type Outcome int

const (
	// Reserved means this invocation won the reservation and must
	// process the event.
	Reserved Outcome = iota
	// AlreadyProcessing means another invocation holds a live
	// reservation; exit without side effects.
	AlreadyProcessing
	// AlreadyCompleted means the event was fully processed before;
	// exit without side effects.
	AlreadyCompleted
)

func (o Outcome) String() string {
	switch o {
	case Reserved:
		return "reserved"
	case AlreadyProcessing:
		return "already_processing"
	case AlreadyCompleted:
		return "already_completed"
	default:
		return "unknown"
	}
}

// Gate is the narrow interface over the shared dedup store. It must be
// backed by a store with a conditional write (create-if-absent), never by
// process memory.
type Gate interface {
	// Reserve attempts a create-if-absent on the event id.
	Reserve(ctx context.Context, eventID string) (Outcome, error)
	// Complete marks the event as fully processed. At most one record
	// per event id ever reaches completed.
	Complete(ctx context.Context, eventID string) error
	// Release drops a still-held reservation so a legitimate retry can
	// re-enter. Releasing an already-completed record is a no-op; a
	// crashed invocation that never releases is covered by the
	// reservation TTL.
	Release(ctx context.Context, eventID string) error
}
