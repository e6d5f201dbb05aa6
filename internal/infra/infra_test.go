package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 3100, cfg.APIPort)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 500, cfg.SweepBatch)
	assert.Equal(t, 8*time.Hour, cfg.JWTAdminExpiry)
	assert.False(t, cfg.RedisEnabled)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/mutes.db")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("CHECK_RATE_LIMIT", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/mutes.db", cfg.SQLitePath)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 5, cfg.CheckRateLimit)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestConfig_Validate(t *testing.T) {
	strong := "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"strong secret", func(c *Config) { c.JWTSecret = strong }, ""},
		{"insecure default", func(c *Config) {}, "insecure default"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "too short"},
		{"insecure allowed", func(c *Config) { c.AllowInsecureDefaults = true }, ""},
		{"unknown driver", func(c *Config) {
			c.JWTSecret = strong
			c.StoreDriver = "mongo"
		}, "STORE_DRIVER"},
		{"zero sweep batch", func(c *Config) {
			c.AllowInsecureDefaults = true
			c.SweepBatch = 0
		}, "SWEEP_BATCH"},
		{"zero pool size", func(c *Config) {
			c.AllowInsecureDefaults = true
			c.PGMaxConns = 0
		}, "PG_MAX_CONNS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_OutboxEnabled(t *testing.T) {
	tests := []struct {
		driver string
		kafka  bool
		want   bool
	}{
		{StoreDriverPostgres, true, true},
		{StoreDriverPostgres, false, false},
		{StoreDriverSQLite, true, false},
		{StoreDriverMemory, true, false},
	}
	for _, tt := range tests {
		cfg := &Config{StoreDriver: tt.driver, KafkaEnabled: tt.kafka}
		assert.Equal(t, tt.want, cfg.OutboxEnabled(), "driver=%s kafka=%v", tt.driver, tt.kafka)
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.OutboxEnabled(), "defaults leave nothing to drain the outbox")
}

func TestPoolConfig(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 10, poolCfg.MaxConns)
	assert.Equal(t, "mute-registry", poolCfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "5000", poolCfg.ConnConfig.RuntimeParams["statement_timeout"])

	cfg.DatabaseURL = "postgres://u:p@db:5432/mod?application_name=ops-console"
	cfg.PGMaxConns = 3
	cfg.PGStatementTimeout = 0
	poolCfg, err = poolConfig(cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 3, poolCfg.MaxConns)
	assert.Equal(t, "ops-console", poolCfg.ConnConfig.RuntimeParams["application_name"])
	assert.NotContains(t, poolCfg.ConnConfig.RuntimeParams, "statement_timeout")
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{PGUser: "u", PGPassword: "p", PGHost: "db", PGPort: 5432, PGDatabase: "mod"}
	assert.Equal(t, "postgres://u:p@db:5432/mod?sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://override"
	assert.Equal(t, "postgres://override", cfg.DSN())
}

func TestOpenSQLite_Memory(t *testing.T) {
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	store, err := repository.NewSQLiteRestrictionStore(context.Background(), db)
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}

// fakeOutbox is an in-memory OutboxRepository.
type fakeOutbox struct {
	events    []domain.OutboxDraft
	published []int64
}

func (f *fakeOutbox) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	d.SeqID = int64(len(f.events) + 1)
	f.events = append(f.events, d)
	return nil
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxDraft, error) {
	var out []domain.OutboxDraft
	for _, e := range f.events {
		if !f.isPublished(e.SeqID) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, _ repository.DBTX, ids []int64) error {
	f.published = append(f.published, ids...)
	return nil
}

func (f *fakeOutbox) Backlog(context.Context, repository.DBTX) (int64, *time.Time, error) {
	var n int64
	var oldest *time.Time
	for i := range f.events {
		if f.isPublished(f.events[i].SeqID) {
			continue
		}
		n++
		if oldest == nil {
			oldest = &f.events[i].OccurredAt
		}
	}
	return n, oldest, nil
}

func (f *fakeOutbox) isPublished(id int64) bool {
	for _, p := range f.published {
		if p == id {
			return true
		}
	}
	return false
}

type sentMessage struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type fakePublisher struct {
	sent   []sentMessage
	failAt int // 1-based, 0 = never
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		p.failAt = 0
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: string(key), value: value, headers: headers})
	return nil
}

func seedOutbox(t *testing.T, repo *fakeOutbox, values ...string) {
	t.Helper()
	for _, v := range values {
		r := domain.NewRestriction(domain.IdentifierUUID, v, nil)
		require.NoError(t, repo.Insert(context.Background(), nil, domain.NewRestrictionOutboxDraft(domain.EventRestrictionAdded, *r)))
	}
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	repo := &fakeOutbox{}
	pub := &fakePublisher{}
	seedOutbox(t, repo, "u-1", "u-2")

	poller := NewOutboxPoller(nil, repo, pub, time.Second, 10, testLogger)
	n, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, repo.published)

	require.Len(t, pub.sent, 2)
	msg := pub.sent[0]
	assert.Equal(t, "moderation.restriction.added", msg.topic)
	assert.Equal(t, "u-1", msg.key)
	assert.Equal(t, "uuid", msg.headers["identifier_type"])

	var body outboxMessage
	require.NoError(t, json.Unmarshal(msg.value, &body))
	assert.Equal(t, "restriction", body.AggregateType)
	assert.Equal(t, "moderation.restriction.added", body.EventType)

	n, err = poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxPoller_StopsAtFirstFailure(t *testing.T) {
	repo := &fakeOutbox{}
	pub := &fakePublisher{failAt: 2}
	seedOutbox(t, repo, "u-1", "u-2", "u-3")

	poller := NewOutboxPoller(nil, repo, pub, time.Second, 10, testLogger)
	n, err := poller.Poll(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, repo.published)

	n, err = poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"u-1", "u-2", "u-3"}, []string{pub.sent[0].key, pub.sent[1].key, pub.sent[2].key})
}

func TestWSHub_PublishToRoom(t *testing.T) {
	hub := NewWSHub(testLogger)
	a := &WSConn{ID: "a", Send: make(chan []byte, 1)}
	b := &WSConn{ID: "b", Send: make(chan []byte, 1)}
	require.True(t, hub.Join("moderation", a))
	require.True(t, hub.Join("other", b))

	hub.Publish("moderation", "restriction.added", map[string]string{"value": "x"})

	select {
	case payload := <-a.Send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, "restriction.added", msg.Event)
	default:
		t.Fatal("expected message for room member")
	}
	assert.Empty(t, b.Send)
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.Equal(t, 2, hub.RoomCount())
}

func TestWSHub_FullBufferDrops(t *testing.T) {
	hub := NewWSHub(testLogger)
	c := &WSConn{ID: "slow", Send: make(chan []byte, 1)}
	hub.Join("moderation", c)

	hub.Publish("moderation", "e", 1)
	hub.Publish("moderation", "e", 2)
	assert.Len(t, c.Send, 1)
}

func TestWSHub_LeaveAndShutdown(t *testing.T) {
	hub := NewWSHub(testLogger)
	c := &WSConn{ID: "c", Send: make(chan []byte, 1)}
	hub.Join("moderation", c)

	hub.Leave("moderation", "c")
	_, open := <-c.Send
	assert.False(t, open)
	assert.Zero(t, hub.RoomCount())

	d := &WSConn{ID: "d", Send: make(chan []byte, 1)}
	hub.Join("moderation", d)
	hub.Shutdown(context.Background())
	_, open = <-d.Send
	assert.False(t, open)
	assert.False(t, hub.Join("moderation", &WSConn{ID: "e", Send: make(chan []byte)}))
}
