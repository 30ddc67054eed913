// Package enrich attaches account and lease context to an event for the
// duration of one invocation. Enrichment is best-effort: a failed lookup
// degrades the context instead of aborting the notification; a partial
// alert delivered now beats no alert at all.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborlab/leasealert/internal/event"
	"github.com/harborlab/leasealert/internal/metrics"
)

// Placeholder substitutes any context field a lookup could not provide.
const Placeholder = "unknown"

// Context is the enriched, per-invocation view of the event's account and
// lease. It is derived data, never persisted.
type Context struct {
	AccountID    string
	AccountLabel string
	OwnerEmail   string
	LeaseID      string
	LeaseOwner   string
	BudgetUsed   string
	BudgetLimit  string
	// Degraded is set when any lookup failed and placeholders were
	// substituted.
	Degraded bool
}

// Store fetches one context record as a flat field map. A missing record
// yields an empty map, not an error.
type Store interface {
	Fetch(ctx context.Context, key string) (map[string]string, error)
}

// RedisStore reads context hashes (account:<id>, lease:<id>) from Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Fetch(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+":"+key).Result()
	if err != nil {
		return nil, fmt.Errorf("context fetch %s: %w", key, err)
	}
	return fields, nil
}

// Service performs the lookups with a per-call timeout.
type Service struct {
	store   Store
	timeout time.Duration
}

func NewService(store Store, timeout time.Duration) *Service {
	return &Service{store: store, timeout: timeout}
}

// Enrich never returns an error: lookup failures are logged, counted and
// replaced with placeholders.
func (s *Service) Enrich(ctx context.Context, env *event.Envelope) Context {
	ec := Context{
		AccountID:    env.Field("accountId"),
		AccountLabel: Placeholder,
		OwnerEmail:   "",
		LeaseID:      env.Field("leaseId"),
		LeaseOwner:   Placeholder,
		BudgetUsed:   Placeholder,
		BudgetLimit:  Placeholder,
	}
	if ec.AccountID == "" {
		ec.AccountID = Placeholder
		ec.Degraded = true
		slog.Warn("enrichment degraded: event has no accountId", "event_id", env.ID, "type", env.Type)
		metrics.EnrichmentDegraded.Inc()
		return ec
	}

	account, err := s.fetch(ctx, "account:"+ec.AccountID)
	if err != nil {
		ec.Degraded = true
		slog.Warn("enrichment degraded: account lookup failed", "event_id", env.ID, "account_id", ec.AccountID, "err", err)
	} else {
		setField(&ec.AccountLabel, account, "label")
		if v, ok := account["owner_email"]; ok && v != "" {
			ec.OwnerEmail = v
		}
		setField(&ec.BudgetUsed, account, "budget_used")
		setField(&ec.BudgetLimit, account, "budget_limit")
		if len(account) == 0 {
			ec.Degraded = true
			slog.Warn("enrichment degraded: account not found", "event_id", env.ID, "account_id", ec.AccountID)
		}
	}

	if ec.LeaseID != "" {
		lease, err := s.fetch(ctx, "lease:"+ec.LeaseID)
		if err != nil {
			ec.Degraded = true
			slog.Warn("enrichment degraded: lease lookup failed", "event_id", env.ID, "lease_id", ec.LeaseID, "err", err)
		} else if len(lease) == 0 {
			ec.Degraded = true
		} else {
			setField(&ec.LeaseOwner, lease, "owner")
		}
	}

	if ec.Degraded {
		metrics.EnrichmentDegraded.Inc()
	}
	return ec
}

func (s *Service) fetch(ctx context.Context, key string) (map[string]string, error) {
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Fetch(fctx, key)
}

func setField(dst *string, fields map[string]string, name string) {
	if v, ok := fields[name]; ok && v != "" {
		*dst = v
	}
}
