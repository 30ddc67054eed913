// Package dlq persists deliveries that failed after the platform's retries
// were exhausted. Entries land on a durable stream and are only ever read
// additively: the digest advances a watermark, the stream's own length cap
// is the retention policy.
package dlq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one permanently failed delivery.
type Entry struct {
	EventID       string
	EventType     string
	FailureReason string
	FirstFailedAt time.Time
	Attempts      int
}

// RedisStore keeps dead-letter entries on a Redis stream.
type RedisStore struct {
	client *redis.Client
	stream string
	wmKey  string
	maxLen int64
}

// NewRedisStore creates the store. maxLen caps the stream approximately;
// entries beyond it are trimmed by Redis, not by any consumer.
func NewRedisStore(client *redis.Client, prefix string, maxLen int64) *RedisStore {
	return &RedisStore{
		client: client,
		stream: prefix + ":dlq",
		wmKey:  prefix + ":dlq:watermark",
		maxLen: maxLen,
	}
}

// Append records one failed delivery.
func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id":        e.EventID,
			"event_type":      e.EventType,
			"failure_reason":  e.FailureReason,
			"first_failed_at": e.FirstFailedAt.UTC().Format(time.RFC3339),
			"attempts":        e.Attempts,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("dead-letter append %s: %w", e.EventID, err)
	}
	return nil
}

// ReadSince returns up to limit entries recorded after the watermark
// (a stream id; empty means from the beginning) together with the
// watermark to persist once the batch is consumed.
func (s *RedisStore) ReadSince(ctx context.Context, watermark string, limit int64) ([]Entry, string, error) {
	start := "-"
	if watermark != "" {
		// Exclusive range: skip the entry the watermark points at.
		start = "(" + watermark
	}
	msgs, err := s.client.XRangeN(ctx, s.stream, start, "+", limit).Result()
	if err != nil {
		return nil, watermark, fmt.Errorf("dead-letter read since %q: %w", watermark, err)
	}
	if len(msgs) == 0 {
		return nil, watermark, nil
	}

	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, entryFromMessage(m))
	}
	return entries, msgs[len(msgs)-1].ID, nil
}

// Watermark returns the last persisted digest position ("" when the digest
// has never run).
func (s *RedisStore) Watermark(ctx context.Context) (string, error) {
	wm, err := s.client.Get(ctx, s.wmKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dead-letter watermark: %w", err)
	}
	return wm, nil
}

// SetWatermark advances the digest position.
func (s *RedisStore) SetWatermark(ctx context.Context, wm string) error {
	if err := s.client.Set(ctx, s.wmKey, wm, 0).Err(); err != nil {
		return fmt.Errorf("dead-letter watermark set: %w", err)
	}
	return nil
}

func entryFromMessage(m redis.XMessage) Entry {
	e := Entry{
		EventID:       stringValue(m, "event_id"),
		EventType:     stringValue(m, "event_type"),
		FailureReason: stringValue(m, "failure_reason"),
	}
	if ts, err := time.Parse(time.RFC3339, stringValue(m, "first_failed_at")); err == nil {
		e.FirstFailedAt = ts
	}
	if n, err := strconv.Atoi(stringValue(m, "attempts")); err == nil {
		e.Attempts = n
	}
	return e
}

func stringValue(m redis.XMessage, field string) string {
	if v, ok := m.Values[field].(string); ok {
		return v
	}
	return ""
}
