package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborlab/leasealert/internal/api"
	"github.com/harborlab/leasealert/internal/channel"
	"github.com/harborlab/leasealert/internal/channel/chat"
	"github.com/harborlab/leasealert/internal/channel/email"
	"github.com/harborlab/leasealert/internal/config"
	"github.com/harborlab/leasealert/internal/dlq"
	"github.com/harborlab/leasealert/internal/enrich"
	"github.com/harborlab/leasealert/internal/idempotency"
	"github.com/harborlab/leasealert/internal/pipeline"
	"github.com/harborlab/leasealert/internal/runner"
	"github.com/harborlab/leasealert/internal/schema"
)

func main() {
	cfgPath := flag.String("config", "configs/pipeline.yaml", "Path to pipeline YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	envCfg, err := config.ParseEnv()
	if err != nil {
		slog.Error("failed to load environment", "err", err)
		os.Exit(1)
	}
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Shared stores ─────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     envCfg.RedisAddr,
		Password: envCfg.RedisPassword,
		DB:       envCfg.RedisDB,
	})
	defer rdb.Close()

	gate := idempotency.NewRedisGate(rdb, envCfg.KeyPrefix,
		time.Duration(cfg.Dedup.ReserveTTLSeconds)*time.Second,
		time.Duration(cfg.Dedup.CompleteTTLSeconds)*time.Second,
	)
	contextStore := enrich.NewRedisStore(rdb, envCfg.KeyPrefix)
	deadLetters := dlq.NewRedisStore(rdb, envCfg.KeyPrefix, cfg.Digest.StreamMaxLen)

	// ── Pipeline stages ───────────────────────────────────────────────────────
	validator, err := schema.New()
	if err != nil {
		slog.Error("failed to compile event schemas", "err", err)
		os.Exit(1)
	}
	slog.Info("event schemas compiled")

	enricher := enrich.NewService(contextStore,
		time.Duration(cfg.Enrich.LookupTimeoutMs)*time.Millisecond)

	sendTimeout := time.Duration(cfg.Delivery.SendTimeoutMs) * time.Millisecond
	senders := channel.NewRegistry()
	senders.Register(chat.New(envCfg.ChatWebhookURL, sendTimeout))
	senders.Register(email.New(envCfg.EmailAPIBaseURL, envCfg.EmailAPIKey, envCfg.EmailOpsRecipient, sendTimeout))

	settings := func() pipeline.Settings {
		c := loader.Config()
		return pipeline.Settings{
			SendAttempts:  uint(c.Delivery.SendAttempts),
			SendBaseDelay: time.Duration(c.Delivery.SendBaseDelayMs) * time.Millisecond,
			ChatEnabled:   c.Delivery.ChatEnabled,
			EmailEnabled:  c.Delivery.EmailEnabled,
		}
	}
	handler := pipeline.New(validator, gate, enricher, senders, settings)

	// ── Hosting runtime ───────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := runner.New(ctx, handler, deadLetters, runner.Config{
		Workers:           cfg.Runner.Workers,
		QueueDepth:        cfg.Runner.QueueDepth,
		InvocationTimeout: time.Duration(cfg.Runner.EventTimeoutMs) * time.Millisecond,
		PlatformAttempts:  cfg.Runner.PlatformAttempts,
		RedeliveryDelay:   time.Duration(cfg.Runner.RedeliveryDelayMs) * time.Millisecond,
	})

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.PipelineConfig) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		slog.Info("pipeline config hot-reloaded", "version", newCfg.Version)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         envCfg.ListenAddr,
		Handler:      api.New(run, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", envCfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	run.Drain()
	cancel()
	slog.Info("goodbye")
}
