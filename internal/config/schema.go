package config

// PipelineConfig is the top-level YAML structure.
type PipelineConfig struct {
	Version  string       `yaml:"version"`
	Runner   RunnerConf   `yaml:"runner"`
	Delivery DeliveryConf `yaml:"delivery"`
	Dedup    DedupConf    `yaml:"dedup"`
	Enrich   EnrichConf   `yaml:"enrich"`
	Digest   DigestConf   `yaml:"digest"`
}

// RunnerConf holds tunable concurrency and redelivery settings for the
// hosting runtime.
type RunnerConf struct {
	Workers           int `yaml:"workers"`
	QueueDepth        int `yaml:"queue_depth"`
	EventTimeoutMs    int `yaml:"event_timeout_ms"`
	PlatformAttempts  int `yaml:"platform_attempts"`
	RedeliveryDelayMs int `yaml:"redelivery_delay_ms"`
}

// DeliveryConf tunes the channel senders and the handler's own retry loop.
type DeliveryConf struct {
	ChatEnabled     bool `yaml:"chat_enabled"`
	EmailEnabled    bool `yaml:"email_enabled"`
	SendTimeoutMs   int  `yaml:"send_timeout_ms"`
	SendAttempts    int  `yaml:"send_attempts"`
	SendBaseDelayMs int  `yaml:"send_base_delay_ms"`
}

// DedupConf sizes the idempotency windows. The reservation TTL bounds how
// long a crashed invocation can block a retry; the completion TTL is the
// dedup retention window.
type DedupConf struct {
	ReserveTTLSeconds  int `yaml:"reserve_ttl_seconds"`
	CompleteTTLSeconds int `yaml:"complete_ttl_seconds"`
}

// EnrichConf tunes the context-store lookups.
type EnrichConf struct {
	LookupTimeoutMs int `yaml:"lookup_timeout_ms"`
}

// DigestConf schedules the dead-letter digest.
type DigestConf struct {
	IntervalSeconds int   `yaml:"interval_seconds"`
	BatchSize       int64 `yaml:"batch_size"`
	StreamMaxLen    int64 `yaml:"stream_max_len"`
}
