// Package notify holds the registry listeners that carry restriction events out of
// the process: audit log, metrics, transactional outbox, Redis bus and live feed.
package notify

import (
	"context"
	"log/slog"

	"github.com/attaboy/muteregistry/internal/domain"
)

// Audit writes one log line per restriction added or removed.
type Audit struct {
	logger *slog.Logger
}

// NewAudit creates an audit listener.
func NewAudit(logger *slog.Logger) *Audit {
	return &Audit{logger: logger.With("component", "restriction_audit")}
}

func (a *Audit) OnRestrictionAdded(ctx context.Context, r domain.Restriction) error {
	a.logger.InfoContext(ctx, "restriction added",
		"restriction_id", r.ID,
		"identifier_type", r.Type,
		"value", r.Value,
		"expires_at", r.ExpiresAt,
	)
	return nil
}

func (a *Audit) OnRestrictionRemoved(ctx context.Context, r domain.Restriction) error {
	a.logger.InfoContext(ctx, "restriction removed",
		"restriction_id", r.ID,
		"identifier_type", r.Type,
		"value", r.Value,
	)
	return nil
}
