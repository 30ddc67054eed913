// Package pipeline contains the orchestrating handler: one invocation per
// event, walking Validating → Deduping → Enriching → Classifying →
// Rendering → Sending → Completed, with early exits for drops, duplicates
// and unrecovered delivery failures.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/harborlab/leasealert/internal/channel"
	"github.com/harborlab/leasealert/internal/classify"
	"github.com/harborlab/leasealert/internal/enrich"
	"github.com/harborlab/leasealert/internal/event"
	"github.com/harborlab/leasealert/internal/idempotency"
	"github.com/harborlab/leasealert/internal/metrics"
	"github.com/harborlab/leasealert/internal/render"
)

// State is the terminal state of one invocation.
type State string

const (
	StateCompleted State = "completed"
	// StateDropped: validation failure; the event never entered the gate.
	StateDropped State = "dropped"
	// StateSkipped: the idempotency gate saw the event before.
	StateSkipped State = "skipped"
	// StateFailed: a retryable delivery failure is propagating to the
	// hosting runtime.
	StateFailed State = "failed"
)

// Result is the outcome of handling a single event.
type Result struct {
	EventID    string   `json:"event_id"`
	EventType  string   `json:"event_type"`
	State      State    `json:"state"`
	Reason     string   `json:"reason,omitempty"`
	Sent       []string `json:"sent,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// Validator type-checks an envelope's detail.
type Validator interface {
	Validate(env *event.Envelope) error
}

// Enricher attaches account/lease context; it degrades instead of failing.
type Enricher interface {
	Enrich(ctx context.Context, env *event.Envelope) enrich.Context
}

// Settings are the per-invocation tunables, resolved at call time so the
// config file can be hot-reloaded underneath a running handler.
type Settings struct {
	// SendAttempts bounds the handler's own retry loop per channel send.
	SendAttempts uint
	// SendBaseDelay seeds the exponential backoff between attempts.
	SendBaseDelay time.Duration
	// ChatEnabled/EmailEnabled gate the channels globally.
	ChatEnabled  bool
	EmailEnabled bool
}

// Handler composes the pipeline stages for one event at a time.
type Handler struct {
	validator Validator
	gate      idempotency.Gate
	enricher  Enricher
	senders   *channel.Registry
	settings  func() Settings
}

// New wires a handler. settings is consulted on every invocation.
func New(v Validator, gate idempotency.Gate, e Enricher, senders *channel.Registry, settings func() Settings) *Handler {
	return &Handler{
		validator: v,
		gate:      gate,
		enricher:  e,
		senders:   senders,
		settings:  settings,
	}
}

// Handle processes one raw event. The returned error is non-nil only for
// retryable conditions: the caller (the hosting runtime) owns redelivery
// and dead-letter routing. Every other condition is resolved here.
func (h *Handler) Handle(ctx context.Context, raw []byte) (*Result, error) {
	start := time.Now()

	// Validating.
	env, err := event.Parse(raw)
	if err != nil {
		slog.Error("event dropped: undecodable payload", "err", err)
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		return h.finish(&Result{State: StateDropped, Reason: err.Error()}, start), nil
	}
	res := &Result{EventID: env.ID, EventType: env.Type}

	if err := h.validator.Validate(env); err != nil {
		if KindOf(err) != KindValidation {
			return nil, fmt.Errorf("validate event %s: %w", env.ID, err)
		}
		slog.Error("event dropped: schema validation failed", "event_id", env.ID, "type", env.Type, "err", err)
		metrics.EventsDropped.WithLabelValues("schema").Inc()
		res.State = StateDropped
		res.Reason = err.Error()
		return h.finish(res, start), nil
	}

	// Deduping. Exactly one concurrent invocation per event id gets past
	// this point.
	outcome, err := h.gate.Reserve(ctx, env.ID)
	if err != nil {
		return nil, fmt.Errorf("reserve event %s: %w", env.ID, err)
	}
	if outcome != idempotency.Reserved {
		slog.Info("event skipped: duplicate delivery", "event_id", env.ID, "gate", outcome.String())
		metrics.DuplicatesSkipped.Inc()
		res.State = StateSkipped
		res.Reason = outcome.String()
		return h.finish(res, start), nil
	}

	// Enriching (never fails) and Classifying (pure).
	ec := h.enricher.Enrich(ctx, env)
	cls := classify.Classify(env.Type)

	// Rendering.
	payloads := h.renderPayloads(env, ec, cls)

	// Sending.
	for _, p := range payloads {
		if err := h.deliver(ctx, env, p); err != nil {
			// Retryable and exhausted: free the reservation so the
			// redelivery can re-enter, then let the error escape.
			if relErr := h.gate.Release(ctx, env.ID); relErr != nil {
				slog.Error("failed to release reservation; TTL expiry will reopen the event",
					"event_id", env.ID, "err", relErr)
			}
			res.State = StateFailed
			res.Reason = err.Error()
			h.finish(res, start)
			return res, err
		}
		res.Sent = append(res.Sent, p.Channel())
	}

	// Completed. A failed Complete is logged, not propagated: the sends
	// already happened, and propagating would invite a duplicate
	// delivery the moment the reservation is released.
	if err := h.gate.Complete(ctx, env.ID); err != nil {
		slog.Error("failed to mark event completed; dedup falls back to reservation TTL",
			"event_id", env.ID, "err", err)
	}
	res.State = StateCompleted
	return h.finish(res, start), nil
}

// renderPayloads builds one payload per applicable channel, honoring the
// global channel toggles.
func (h *Handler) renderPayloads(env *event.Envelope, ec enrich.Context, cls classify.Classification) []channel.Payload {
	st := h.settings()
	var payloads []channel.Payload
	if cls.Has(classify.Chat) && st.ChatEnabled {
		payloads = append(payloads, render.Chat(env, ec, cls))
	}
	if cls.Has(classify.Email) && st.EmailEnabled {
		if p, ok := render.Email(env, ec, cls); ok {
			payloads = append(payloads, p)
		}
	}
	return payloads
}

// deliver sends one payload with the handler's own bounded retry. Fatal
// failures are swallowed here (logged and counted; retrying cannot help);
// only a retryable failure that survives the retry budget is returned.
func (h *Handler) deliver(ctx context.Context, env *event.Envelope, p channel.Payload) error {
	snd, err := h.senders.Get(p.Channel())
	if err != nil {
		slog.Error("send skipped: no sender for channel", "event_id", env.ID, "channel", p.Channel())
		metrics.Sends.WithLabelValues(p.Channel(), "fatal").Inc()
		return nil
	}

	st := h.settings()
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = st.SendBaseDelay

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		sendErr := snd.Send(ctx, p)
		if sendErr != nil && KindOf(sendErr) == KindFatal {
			return struct{}{}, backoff.Permanent(sendErr)
		}
		return struct{}{}, sendErr
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(st.SendAttempts))

	switch {
	case err == nil:
		metrics.Sends.WithLabelValues(p.Channel(), "success").Inc()
		return nil
	case KindOf(err) == KindFatal:
		slog.Error("send failed permanently; not retrying", "event_id", env.ID, "channel", p.Channel(), "err", err)
		metrics.Sends.WithLabelValues(p.Channel(), "fatal").Inc()
		return nil
	default:
		slog.Warn("send failed after local retries; propagating", "event_id", env.ID, "channel", p.Channel(), "err", err)
		metrics.Sends.WithLabelValues(p.Channel(), "retryable").Inc()
		return err
	}
}

func (h *Handler) finish(res *Result, start time.Time) *Result {
	res.DurationMs = time.Since(start).Milliseconds()
	metrics.EventsProcessed.WithLabelValues(string(res.State)).Inc()
	metrics.EventProcessingDuration.Observe(float64(res.DurationMs))
	return res
}
