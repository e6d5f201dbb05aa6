package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/registry"
	"github.com/attaboy/muteregistry/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))

func TestSweepOnce_RemovesAllExpiredInBatches(t *testing.T) {
	ctx := context.Background()
	removed := 0
	reg := registry.New(repository.NewMemoryRestrictionStore(), testLogger,
		registry.WithListeners(registry.ListenerFuncs{
			Removed: func(context.Context, domain.Restriction) error {
				removed++
				return nil
			},
		}),
	)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	for i := 0; i < 7; i++ {
		_, err := reg.CreateRecord(ctx, domain.IdentifierUUID, fmt.Sprintf("expired-%d", i), &past)
		require.NoError(t, err)
	}
	_, err := reg.CreateRecord(ctx, domain.IdentifierUUID, "active", &future)
	require.NoError(t, err)

	s := New(reg, time.Minute, 3, testLogger)
	n, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 7, removed, "each expired record notifies once")

	left, err := reg.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)

	n, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type stubRemover struct {
	results []int
	err     error
	calls   int
}

func (s *stubRemover) RemoveExpired(context.Context, time.Time, int) (int, error) {
	if s.calls >= len(s.results) {
		return 0, s.err
	}
	n := s.results[s.calls]
	s.calls++
	return n, nil
}

func TestSweepOnce_StopsOnError(t *testing.T) {
	stub := &stubRemover{results: []int{5}, err: errors.New("store down")}
	s := New(stub, time.Minute, 5, testLogger)

	n, err := s.SweepOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 5, n)
}

func TestRun_DisabledReturnsImmediately(t *testing.T) {
	s := New(&stubRemover{}, 0, 10, testLogger)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return when disabled")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	stub := &stubRemover{}
	s := New(stub, 10*time.Millisecond, 10, testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should stop after cancel")
	}
}
