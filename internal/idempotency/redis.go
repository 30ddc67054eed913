package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusReserved  = "reserved"
	statusCompleted = "completed"
)

// releaseScript deletes the key only while it still holds a reservation,
// so a Release racing a Complete never destroys the completed record.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGate implements Gate with a SET NX conditional write. The
// reservation TTL bounds how long a crashed invocation can block a retry;
// the completion TTL is the dedup retention window.
type RedisGate struct {
	client      *redis.Client
	prefix      string
	reserveTTL  time.Duration
	completeTTL time.Duration
}

// NewRedisGate connects a gate to an existing Redis client.
func NewRedisGate(client *redis.Client, prefix string, reserveTTL, completeTTL time.Duration) *RedisGate {
	return &RedisGate{
		client:      client,
		prefix:      prefix,
		reserveTTL:  reserveTTL,
		completeTTL: completeTTL,
	}
}

func (g *RedisGate) key(eventID string) string {
	return g.prefix + ":dedup:" + eventID
}

// Reserve races concurrent invocations on SET NX: exactly one wins. Losers
// read the current value to tell a live reservation from a completed run.
func (g *RedisGate) Reserve(ctx context.Context, eventID string) (Outcome, error) {
	key := g.key(eventID)
	won, err := g.client.SetNX(ctx, key, statusReserved, g.reserveTTL).Result()
	if err != nil {
		return 0, fmt.Errorf("idempotency reserve %s: %w", eventID, err)
	}
	if won {
		return Reserved, nil
	}

	status, err := g.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// The holder expired or released between our SETNX and GET.
		// Treat as a live reservation; the next delivery will win.
		return AlreadyProcessing, nil
	}
	if err != nil {
		return 0, fmt.Errorf("idempotency status %s: %w", eventID, err)
	}
	if status == statusCompleted {
		return AlreadyCompleted, nil
	}
	return AlreadyProcessing, nil
}

// Complete advances the record to completed and extends it to the
// retention window so redeliveries keep being skipped.
func (g *RedisGate) Complete(ctx context.Context, eventID string) error {
	if err := g.client.Set(ctx, g.key(eventID), statusCompleted, g.completeTTL).Err(); err != nil {
		return fmt.Errorf("idempotency complete %s: %w", eventID, err)
	}
	return nil
}

// Release removes the reservation if (and only if) it is still reserved.
func (g *RedisGate) Release(ctx context.Context, eventID string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key(eventID)}, statusReserved).Err(); err != nil {
		return fmt.Errorf("idempotency release %s: %w", eventID, err)
	}
	return nil
}
