package repository

import (
	"context"
	"time"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// RestrictionFilter selects restriction records. The zero value matches everything.
type RestrictionFilter struct {
	// Type limits matches to one identifier type. Empty matches any type.
	Type domain.IdentifierType
	// Values matches records whose value equals any of these. Empty matches any value.
	Values []string
	// ExpiredBefore, when set, matches only records with an expiry strictly before it.
	ExpiredBefore *time.Time
}

// ByKey matches the single record for (type, value).
func ByKey(t domain.IdentifierType, value string) RestrictionFilter {
	return RestrictionFilter{Type: t, Values: []string{value}}
}

// ByAnyValue matches records of any type whose value is one of values.
func ByAnyValue(values ...string) RestrictionFilter {
	return RestrictionFilter{Values: values}
}

// Matches evaluates the filter against a record in memory.
func (f RestrictionFilter) Matches(r *domain.Restriction) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if len(f.Values) > 0 {
		found := false
		for _, v := range f.Values {
			if r.Value == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ExpiredBefore != nil {
		if r.ExpiresAt == nil || !r.ExpiresAt.Before(*f.ExpiredBefore) {
			return false
		}
	}
	return true
}

// RestrictionStore is the keyed collection restriction records live in.
type RestrictionStore interface {
	// Count returns the number of records matching f.
	Count(ctx context.Context, f RestrictionFilter) (int64, error)

	// Find returns matching records ordered by created_at, id.
	// limit <= 0 means no limit.
	Find(ctx context.Context, f RestrictionFilter, limit, skip int) ([]domain.Restriction, error)

	// InsertOne upserts on (type, value): an existing record keeps its ID and takes the
	// new expiry and creation time. r is updated with the stored row.
	InsertOne(ctx context.Context, r *domain.Restriction) error

	// FindOneAndDelete atomically removes one matching record and returns it.
	// Returns nil, nil when nothing matched.
	FindOneAndDelete(ctx context.Context, f RestrictionFilter) (*domain.Restriction, error)

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event.
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns the oldest events for the relay, with SeqID set.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished deletes relayed events.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error

	// Backlog counts events waiting for the relay and returns the oldest
	// occurrence time, or nil when the outbox is empty.
	Backlog(ctx context.Context, db DBTX) (int64, *time.Time, error)
}
