package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/muteregistry/internal/app"
	"github.com/attaboy/muteregistry/internal/auth"
	"github.com/attaboy/muteregistry/internal/guard"
	"github.com/attaboy/muteregistry/internal/infra"
	"github.com/attaboy/muteregistry/internal/notify"
	"github.com/attaboy/muteregistry/internal/registry"
	"github.com/attaboy/muteregistry/internal/repository"
	"github.com/attaboy/muteregistry/internal/sweep"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
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
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	logger = logger.With("instance_id", instanceID)

	store, pool, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := infra.NewWSHub(logger)
	feed := notify.NewFeed(hub)

	listeners := []registry.Listener{
		notify.NewAudit(logger),
		notify.NewMetrics(promReg),
		feed,
	}
	if pool != nil && cfg.OutboxEnabled() {
		listeners = append(listeners, notify.NewOutbox(pool, repository.NewOutboxRepository()))
	} else if pool != nil {
		logger.Info("event outbox disabled; set KAFKA_ENABLED=true to relay restriction events")
	}

	if cfg.RedisEnabled {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		bus := notify.NewBus(rdb, cfg.RedisChannel, instanceID, guard.NewCircuitBreaker(5, 30*time.Second), logger)
		listeners = append(listeners, bus)
		go func() {
			if err := bus.Subscribe(ctx, feed.Relay); err != nil && ctx.Err() == nil {
				logger.Error("redis bus subscription ended", "error", err)
			}
		}()
	}

	reg := registry.New(store, logger, registry.WithListeners(listeners...))

	sweeper := sweep.New(reg, cfg.SweepInterval, cfg.SweepBatch, logger)
	go sweeper.Run(ctx)

	checkLimiter := guard.NewRateLimiter(cfg.CheckRateLimit, cfg.CheckRateWindow)
	go checkLimiter.Run(ctx)

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAdminExpiry, cfg.JWTServerExpiry)

	router := app.NewRouter(app.RouterDeps{
		Registry:     reg,
		Store:        store,
		JWTMgr:       jwtMgr,
		Logger:       logger,
		Hub:          hub,
		Gatherer:     promReg,
		CheckLimiter: checkLimiter,
		CORSOrigin:   cfg.CORSAllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked feed connections are not tracked by the server.
	hub.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// openStore returns the configured restriction store. pool is non-nil only for
// postgres, where the event outbox lives.
func openStore(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (repository.RestrictionStore, *pgxpool.Pool, func(), error) {
	switch cfg.StoreDriver {
	case infra.StoreDriverPostgres:
		if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("connected to postgres")
		return repository.NewPgRestrictionStore(pool), pool, pool.Close, nil

	case infra.StoreDriverSQLite:
		db, err := infra.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		store, err := repository.NewSQLiteRestrictionStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("init sqlite store: %w", err)
		}
		logger.Info("opened sqlite store", "path", cfg.SQLitePath)
		return store, nil, func() { db.Close() }, nil

	default:
		logger.Warn("using in-memory store; restrictions are lost on restart")
		return repository.NewMemoryRestrictionStore(), nil, func() {}, nil
	}
}
