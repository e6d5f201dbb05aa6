// Package sweep removes restriction records whose expiry has passed.
package sweep

import (
	"context"
	"log/slog"
	"time"
)

// Remover is the registry operation the sweeper drives.
type Remover interface {
	RemoveExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// Sweeper periodically removes expired records in batches.
type Sweeper struct {
	remover  Remover
	interval time.Duration
	batch    int
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a sweeper. A zero interval disables Run.
func New(remover Remover, interval time.Duration, batch int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		remover:  remover,
		interval: interval,
		batch:    batch,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("expiry sweeper disabled")
		return
	}
	s.logger.Info("expiry sweeper started", "interval", s.interval, "batch", s.batch)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("expiry sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce removes batches until one comes back short, and returns the total removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	total := 0
	for {
		n, err := s.remover.RemoveExpired(ctx, now, s.batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batch {
			break
		}
	}
	if total > 0 {
		s.logger.Info("expired restrictions removed", "count", total)
	}
	return total, nil
}
