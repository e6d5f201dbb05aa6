package infra

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Storage
	StoreDriver        string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	PGHost             string        `env:"PGHOST" envDefault:"localhost"`
	PGPort             int           `env:"PGPORT" envDefault:"5435"`
	PGUser             string        `env:"PGUSER" envDefault:"moderation"`
	PGPassword         string        `env:"PGPASSWORD" envDefault:"moderation"`
	PGDatabase         string        `env:"PGDATABASE" envDefault:"moderation"`
	PGMaxConns         int32         `env:"PG_MAX_CONNS" envDefault:"10"`
	PGStatementTimeout time.Duration `env:"PG_STATEMENT_TIMEOUT" envDefault:"5s"`
	MigrationsDir      string        `env:"MIGRATIONS_DIR"`
	SQLitePath         string        `env:"SQLITE_PATH" envDefault:"data/restrictions.db"`

	// Redis event bus
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6380"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"moderation.restrictions"`
	InstanceID   string `env:"INSTANCE_ID"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAdminExpiry  time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`
	JWTServerExpiry time.Duration `env:"JWT_SERVER_EXPIRY" envDefault:"720h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Background jobs
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SweepBatch         int           `env:"SWEEP_BATCH" envDefault:"500"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Check endpoint rate limit, per client IP
	CheckRateLimit  int           `env:"CHECK_RATE_LIMIT" envDefault:"600"`
	CheckRateWindow time.Duration `env:"CHECK_RATE_WINDOW" envDefault:"1m"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure or inconsistent configuration.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the secret checks (local dev only).
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, sqlite, memory; got %q", c.StoreDriver)
	}
	if c.SweepBatch <= 0 {
		return fmt.Errorf("SWEEP_BATCH must be positive, got %d", c.SweepBatch)
	}
	if c.PGMaxConns <= 0 {
		return fmt.Errorf("PG_MAX_CONNS must be positive, got %d", c.PGMaxConns)
	}
	if c.CheckRateLimit <= 0 {
		return fmt.Errorf("CHECK_RATE_LIMIT must be positive, got %d", c.CheckRateLimit)
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// OutboxEnabled reports whether restriction events should be written to the
// event outbox. Rows are only drained by cmd/outbox-relay, which needs Kafka.
func (c *Config) OutboxEnabled() bool {
	return c.StoreDriver == StoreDriverPostgres && c.KafkaEnabled
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
