// Package runner is the hosting runtime for pipeline invocations: a
// fixed-size worker pool with a bounded intake queue. It owns the two
// concerns the orchestrating handler deliberately leaves to its host:
// redelivery of retryable failures and dead-letter routing once the
// redelivery budget is spent.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harborlab/leasealert/internal/dlq"
	"github.com/harborlab/leasealert/internal/event"
	"github.com/harborlab/leasealert/internal/metrics"
	"github.com/harborlab/leasealert/internal/pipeline"
)

// Handler is the per-invocation entry point.
type Handler interface {
	Handle(ctx context.Context, raw []byte) (*pipeline.Result, error)
}

// DeadLetters receives deliveries the runner has given up on.
type DeadLetters interface {
	Append(ctx context.Context, e dlq.Entry) error
}

// Config holds the runtime tunables.
type Config struct {
	Workers           int
	QueueDepth        int
	InvocationTimeout time.Duration
	// PlatformAttempts is how many times one event is (re)delivered to
	// the handler before it is dead-lettered.
	PlatformAttempts int
	RedeliveryDelay  time.Duration
}

// Runner executes invocations concurrently and without ordering
// guarantees. Duplicate submissions of the same event id are allowed to
// run at the same time; the idempotency gate inside the handler is the
// only coordination point.
type Runner struct {
	handler Handler
	dead    DeadLetters
	conf    Config
	queue   chan []byte
	wg      sync.WaitGroup
}

// New creates a Runner and starts its workers.
func New(ctx context.Context, h Handler, dead DeadLetters, conf Config) *Runner {
	r := &Runner{
		handler: h,
		dead:    dead,
		conf:    conf,
		queue:   make(chan []byte, conf.QueueDepth),
	}
	for i := 0; i < conf.Workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.run(ctx)
		}()
	}
	return r
}

func (r *Runner) run(ctx context.Context) {
	for {
		select {
		case raw, ok := <-r.queue:
			if !ok {
				return
			}
			r.process(ctx, raw)
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues a raw event without blocking (returns false if full).
func (r *Runner) Submit(raw []byte) bool {
	select {
	case r.queue <- raw:
		metrics.EventsEnqueued.Inc()
		return true
	default:
		metrics.EventsRejected.Inc()
		return false
	}
}

// process delivers one event at least once: the handler is re-invoked on a
// retryable failure, and the event is dead-lettered when the budget runs
// out. Every invocation gets its own deadline.
func (r *Runner) process(ctx context.Context, raw []byte) {
	var (
		lastRes     *pipeline.Result
		lastErr     error
		firstFailed time.Time
	)

	for attempt := 1; attempt <= r.conf.PlatformAttempts; attempt++ {
		invCtx, cancel := context.WithTimeout(ctx, r.conf.InvocationTimeout)
		res, err := r.handler.Handle(invCtx, raw)
		cancel()
		if err == nil {
			return
		}
		lastRes, lastErr = res, err
		if firstFailed.IsZero() {
			firstFailed = time.Now().UTC()
		}
		slog.Warn("invocation failed; redelivering", "attempt", attempt, "err", err)

		if attempt < r.conf.PlatformAttempts {
			select {
			case <-time.After(r.conf.RedeliveryDelay):
			case <-ctx.Done():
				return
			}
		}
	}

	r.deadLetter(ctx, raw, lastRes, lastErr, firstFailed)
}

func (r *Runner) deadLetter(ctx context.Context, raw []byte, res *pipeline.Result, cause error, firstFailed time.Time) {
	entry := dlq.Entry{
		FailureReason: cause.Error(),
		FirstFailedAt: firstFailed,
		Attempts:      r.conf.PlatformAttempts,
	}
	if res != nil {
		entry.EventID = res.EventID
		entry.EventType = res.EventType
	} else if env, err := event.Parse(raw); err == nil {
		entry.EventID = env.ID
		entry.EventType = env.Type
	}

	if err := r.dead.Append(ctx, entry); err != nil {
		// The entry is lost; leave enough in the log to reconstruct it.
		slog.Error("dead-letter append failed",
			"event_id", entry.EventID, "type", entry.EventType,
			"reason", entry.FailureReason, "err", err)
		return
	}
	metrics.DeadLetters.Inc()
	slog.Error("event dead-lettered",
		"event_id", entry.EventID, "type", entry.EventType,
		"attempts", entry.Attempts, "reason", entry.FailureReason)
}

// QueueUtilization returns queue used / capacity (0–1).
func (r *Runner) QueueUtilization() float64 {
	if cap(r.queue) == 0 {
		return 0
	}
	return float64(len(r.queue)) / float64(cap(r.queue))
}

// Drain closes the queue and waits for in-flight invocations to finish.
func (r *Runner) Drain() {
	close(r.queue)
	r.wg.Wait()
}
