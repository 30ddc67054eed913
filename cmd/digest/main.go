// The digest binary runs the dead-letter summary job on a fixed schedule.
// It shares nothing with the live pipeline beyond read access to the
// dead-letter stream and its watermark.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborlab/leasealert/internal/channel/chat"
	"github.com/harborlab/leasealert/internal/config"
	"github.com/harborlab/leasealert/internal/digest"
	"github.com/harborlab/leasealert/internal/dlq"
)

func main() {
	cfgPath := flag.String("config", "configs/pipeline.yaml", "Path to pipeline YAML config")
	once := flag.Bool("once", false, "Run a single digest pass and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

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

	rdb := redis.NewClient(&redis.Options{
		Addr:     envCfg.RedisAddr,
		Password: envCfg.RedisPassword,
		DB:       envCfg.RedisDB,
	})
	defer rdb.Close()

	store := dlq.NewRedisStore(rdb, envCfg.KeyPrefix, cfg.Digest.StreamMaxLen)
	sender := chat.New(envCfg.ChatWebhookURL, time.Duration(cfg.Delivery.SendTimeoutMs)*time.Millisecond)
	job := digest.New(store, sender, cfg.Digest.BatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		if err := job.Run(ctx); err != nil {
			slog.Error("digest run failed", "err", err)
			os.Exit(1)
		}
		return
	}

	interval := time.Duration(cfg.Digest.IntervalSeconds) * time.Second
	slog.Info("digest scheduler starting", "interval", interval)
	go job.Start(ctx, interval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")
	cancel()
}
