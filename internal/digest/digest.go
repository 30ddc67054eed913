// Package digest turns accumulated dead-letter entries into a single
// periodic summary notification. One aggregate message per run, never one
// per failure: when a downstream dependency breaks, operators get a count,
// not a flood.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/harborlab/leasealert/internal/channel"
	"github.com/harborlab/leasealert/internal/dlq"
	"github.com/harborlab/leasealert/internal/metrics"
)

// Reader is the digest's view of the dead-letter store: batch reads past a
// watermark, never mutating entries.
type Reader interface {
	Watermark(ctx context.Context) (string, error)
	ReadSince(ctx context.Context, watermark string, limit int64) ([]dlq.Entry, string, error)
	SetWatermark(ctx context.Context, watermark string) error
}

// Job reads everything dead-lettered since the last run and emits one
// summary to chat.
type Job struct {
	store  Reader
	sender channel.Sender
	batch  int64
}

// New wires a digest job. batch caps how many entries one run summarizes;
// the remainder is picked up by the next run.
func New(store Reader, sender channel.Sender, batch int64) *Job {
	return &Job{store: store, sender: sender, batch: batch}
}

// Run executes one digest pass. The watermark only advances after the
// summary is delivered, so a failed send re-summarizes the same window
// next time instead of losing it.
func (j *Job) Run(ctx context.Context) error {
	metrics.DigestRuns.Inc()

	wm, err := j.store.Watermark(ctx)
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	entries, newWM, err := j.store.ReadSince(ctx, wm, j.batch)
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	if len(entries) == 0 {
		slog.Debug("digest: no dead letters since last run")
		return nil
	}

	if err := j.sender.Send(ctx, Summary(entries)); err != nil {
		return fmt.Errorf("digest send: %w", err)
	}
	if err := j.store.SetWatermark(ctx, newWM); err != nil {
		return fmt.Errorf("digest: %w", err)
	}

	metrics.DigestEntries.Add(float64(len(entries)))
	slog.Info("digest sent", "entries", len(entries), "watermark", newWM)
	return nil
}

// Start runs the job on a fixed schedule until the context is canceled.
// A failed run is logged and retried on the next tick.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				slog.Error("digest run failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Summary renders one chat payload aggregating the entries, grouped by
// event type and failure reason.
func Summary(entries []dlq.Entry) channel.ChatPayload {
	type key struct {
		eventType string
		reason    string
	}
	counts := make(map[key]int)
	for _, e := range entries {
		counts[key{e.EventType, e.FailureReason}]++
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		if keys[i].eventType != keys[j].eventType {
			return keys[i].eventType < keys[j].eventType
		}
		return keys[i].reason < keys[j].reason
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Dead-letter digest: %d failed deliveries since last run.", len(entries))
	for _, k := range keys {
		fmt.Fprintf(&b, "\n• %s - %s: %d", k.eventType, k.reason, counts[k])
	}
	return channel.ChatPayload{Text: b.String()}
}
