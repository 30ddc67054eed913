package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the secrets and endpoints injected at process start. Nothing
// here is hot-reloadable; rotating a credential means restarting.
type Env struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	ChatWebhookURL string `env:"CHAT_WEBHOOK_URL,required"`

	EmailAPIBaseURL   string `env:"EMAIL_API_BASE_URL,required"`
	EmailAPIKey       string `env:"EMAIL_API_KEY,required"`
	EmailOpsRecipient string `env:"EMAIL_OPS_RECIPIENT" envDefault:""`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// KeyPrefix namespaces every store key (dedup records, context
	// hashes, the dead-letter stream) so environments can share a Redis.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"leasealert"`
}

// ParseEnv loads the environment configuration.
func ParseEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &e, nil
}
