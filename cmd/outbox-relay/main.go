package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/attaboy/muteregistry/internal/infra"
	"github.com/attaboy/muteregistry/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver != infra.StoreDriverPostgres {
		return fmt.Errorf("outbox relay requires STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-relay connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	if !producer.Enabled() {
		// A disabled producer accepts everything, which would drain the outbox.
		return fmt.Errorf("outbox relay requires KAFKA_ENABLED=true and KAFKA_BROKERS")
	}

	outboxRepo := repository.NewOutboxRepository()
	pending, oldest, err := outboxRepo.Backlog(ctx, pool)
	if err != nil {
		return err
	}
	if oldest != nil {
		logger.Info("outbox backlog", "pending", pending, "oldest", oldest.UTC())
	}

	poller := infra.NewOutboxPoller(pool, outboxRepo, producer,
		cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
	poller.Run(ctx)
	return nil
}
