package notify

import (
	"context"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/repository"
)

// Outbox records each event in event_outbox for the relay to publish to Kafka.
// The row is written after the store operation commits, not in the same transaction.
type Outbox struct {
	db   repository.DBTX
	repo repository.OutboxRepository
}

// NewOutbox creates an outbox listener writing through db.
func NewOutbox(db repository.DBTX, repo repository.OutboxRepository) *Outbox {
	return &Outbox{db: db, repo: repo}
}

func (o *Outbox) OnRestrictionAdded(ctx context.Context, r domain.Restriction) error {
	return o.repo.Insert(ctx, o.db, domain.NewRestrictionOutboxDraft(domain.EventRestrictionAdded, r))
}

func (o *Outbox) OnRestrictionRemoved(ctx context.Context, r domain.Restriction) error {
	return o.repo.Insert(ctx, o.db, domain.NewRestrictionOutboxDraft(domain.EventRestrictionRemoved, r))
}
