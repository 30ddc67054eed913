package pipeline

import (
	"errors"

	"github.com/harborlab/leasealert/internal/channel"
	"github.com/harborlab/leasealert/internal/schema"
)

// Kind is the closed set of failure classes the pipeline distinguishes.
// Every call site defers to KindOf instead of re-deciding retryability.
type Kind int

const (
	// KindRetryable covers transient delivery failures and any error of
	// unknown provenance (a store outage looks transient too): propagate
	// so the platform's retry machinery is engaged.
	KindRetryable Kind = iota
	// KindValidation marks a malformed or unknown event: drop, log,
	// never retry; bad input does not become valid on retry.
	KindValidation
	// KindFatal marks a permanent delivery failure: log, never retry.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindValidation:
		return "validation"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// KindOf classifies any pipeline error. Unrecognized errors are treated
// as retryable: the only unrecoverable conditions are the ones we can
// positively identify. Duplicates are not represented here: the gate
// reports them as an Outcome, never as an error.
func KindOf(err error) Kind {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	var ferr *channel.FatalError
	if errors.As(err, &ferr) {
		return KindFatal
	}
	return KindRetryable
}
