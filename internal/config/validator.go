package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for values the pipeline cannot run with.
func Validate(cfg *PipelineConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Runner.Workers < 1 {
		errs = append(errs, "runner.workers must be at least 1")
	}
	if cfg.Runner.QueueDepth < 1 {
		errs = append(errs, "runner.queue_depth must be at least 1")
	}
	if cfg.Runner.PlatformAttempts < 1 {
		errs = append(errs, "runner.platform_attempts must be at least 1")
	}
	if cfg.Delivery.SendAttempts < 1 {
		errs = append(errs, "delivery.send_attempts must be at least 1")
	}
	if !cfg.Delivery.ChatEnabled && !cfg.Delivery.EmailEnabled {
		errs = append(errs, "delivery: at least one channel must be enabled")
	}
	if cfg.Dedup.ReserveTTLSeconds < 1 {
		errs = append(errs, "dedup.reserve_ttl_seconds must be at least 1")
	}
	if cfg.Dedup.CompleteTTLSeconds < cfg.Dedup.ReserveTTLSeconds {
		errs = append(errs, "dedup.complete_ttl_seconds must not be shorter than the reservation TTL")
	}
	if cfg.Digest.IntervalSeconds < 1 {
		errs = append(errs, "digest.interval_seconds must be at least 1")
	}
	if cfg.Digest.BatchSize < 1 {
		errs = append(errs, "digest.batch_size must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
