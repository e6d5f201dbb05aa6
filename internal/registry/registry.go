// Package registry is the single authority for chat restriction records.
//
// A mute against a player is written as two or three independent records, one per
// identifier (uuid, ip address, linked account name). The registry creates and removes
// them together, answers "is this player restricted" by matching any identifier, and
// notifies listeners once per record added or removed.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/repository"
)

// Registry creates, removes, counts, pages and tests restriction records.
// It keeps no mutable state of its own; atomicity comes from the store.
type Registry struct {
	store     repository.RestrictionStore
	logger    *slog.Logger
	listeners []Listener
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithListeners subscribes listeners in the given order.
func WithListeners(listeners ...Listener) Option {
	return func(r *Registry) {
		r.listeners = append(r.listeners, listeners...)
	}
}

// WithClock overrides the time source used for new records.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry over the given store.
func New(store repository.RestrictionStore, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = discardLogger
	}
	r := &Registry{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CountAll returns the number of stored records across all identifier types.
// This counts records, not restricted players.
func (reg *Registry) CountAll(ctx context.Context) (int64, error) {
	n, err := reg.store.Count(ctx, repository.RestrictionFilter{})
	if err != nil {
		return 0, fmt.Errorf("count all: %w", err)
	}
	return n, nil
}

// GetPage returns up to pageSize records after skipping pageIndex*pageSize.
// Pages are offset based; records added or removed between calls shift later pages.
func (reg *Registry) GetPage(ctx context.Context, pageIndex, pageSize int) ([]domain.Restriction, error) {
	if pageIndex < 0 {
		return nil, domain.ErrValidation(fmt.Sprintf("page index must not be negative, got %d", pageIndex))
	}
	if pageSize <= 0 {
		return nil, domain.ErrValidation(fmt.Sprintf("page size must be positive, got %d", pageSize))
	}
	// An offset past math.MaxInt lies beyond any store.
	if pageIndex > math.MaxInt/pageSize {
		return []domain.Restriction{}, nil
	}

	page, err := reg.store.Find(ctx, repository.RestrictionFilter{}, pageSize, pageIndex*pageSize)
	if err != nil {
		return nil, fmt.Errorf("get page %d: %w", pageIndex, err)
	}
	if page == nil {
		page = []domain.Restriction{}
	}
	return page, nil
}

// IsRestricted reports whether any stored record's value equals the player's ip, uuid
// or account name. The record's identifier type is not compared, and expiry is not
// checked: expired records are removed by the sweeper, not hidden here.
func (reg *Registry) IsRestricted(ctx context.Context, p domain.PlayerIdentity) (bool, error) {
	values := p.Values()
	if len(values) == 0 {
		return false, nil
	}

	found, err := reg.store.Find(ctx, repository.ByAnyValue(values...), 1, 0)
	if err != nil {
		return false, fmt.Errorf("is restricted: %w", err)
	}
	return len(found) > 0, nil
}

// CreateRecord writes one restriction record and notifies listeners with the stored
// record. A record that already exists for (type, value) is refreshed with the new
// expiry. Store faults are returned, never encoded in the bool.
func (reg *Registry) CreateRecord(ctx context.Context, t domain.IdentifierType, value string, expiresAt *time.Time) (bool, error) {
	if err := domain.ValidateIdentifier(t, value); err != nil {
		return false, err
	}

	r := domain.NewRestriction(t, value, expiresAt)
	r.CreatedAt = reg.now().UTC()
	if err := reg.store.InsertOne(ctx, r); err != nil {
		return false, fmt.Errorf("create %s restriction: %w", t, err)
	}

	reg.notifyAdded(ctx, *r)
	return true, nil
}

// RemoveRecord deletes the record for (type, value). It returns false when there was
// nothing to delete.
func (reg *Registry) RemoveRecord(ctx context.Context, t domain.IdentifierType, value string) (bool, error) {
	if !t.Valid() {
		return false, domain.ErrValidation(fmt.Sprintf("unknown identifier type: %q", t))
	}
	return reg.removeOne(ctx, repository.ByKey(t, value))
}

// RemoveRecordByValue deletes one record whose value matches, whatever its type.
func (reg *Registry) RemoveRecordByValue(ctx context.Context, value string) (bool, error) {
	if value == "" {
		return false, domain.ErrValidation("value is required")
	}
	return reg.removeOne(ctx, repository.ByAnyValue(value))
}

func (reg *Registry) removeOne(ctx context.Context, f repository.RestrictionFilter) (bool, error) {
	removed, err := reg.store.FindOneAndDelete(ctx, f)
	if err != nil {
		return false, fmt.Errorf("remove restriction: %w", err)
	}
	if removed == nil {
		return false, nil
	}

	reg.notifyRemoved(ctx, *removed)
	return true, nil
}

// MutePlayer restricts every identifier of the player: uuid, ip address, and the
// account name when one is linked. Every create is attempted even after an earlier
// one fails, and failures are logged rather than returned. The result is true only
// if all of them succeeded; false means at least one identifier is not registered.
func (reg *Registry) MutePlayer(ctx context.Context, p domain.PlayerIdentity, expiresAt *time.Time) bool {
	success := true
	for _, id := range p.MuteIdentifiers() {
		ok, err := reg.CreateRecord(ctx, id.Type, id.Value, expiresAt)
		if err != nil {
			reg.logger.Error("could not add mute",
				"player", p.DisplayName(),
				"identifier_type", id.Type,
				"error", err,
			)
		}
		success = success && ok
	}

	if success {
		reg.logger.Info("player muted", "player", p.DisplayName(), "expires_at", expiresAt)
	}
	return success
}

// UnmutePlayer removes the player's uuid, account name (when linked) and ip address
// records in that order. A missing record is not a failure. The first store fault
// stops the sequence, is logged, and yields false; records already removed stay removed.
func (reg *Registry) UnmutePlayer(ctx context.Context, p domain.PlayerIdentity) bool {
	for _, id := range p.UnmuteIdentifiers() {
		if _, err := reg.RemoveRecord(ctx, id.Type, id.Value); err != nil {
			reg.logger.Error("could not remove mute",
				"player", p.DisplayName(),
				"identifier_type", id.Type,
				"error", err,
			)
			return false
		}
	}

	reg.logger.Info("player unmuted", "player", p.DisplayName())
	return true
}

// RemoveExpired deletes up to limit records whose expiry is before now, notifying
// listeners for each. It returns how many were removed.
func (reg *Registry) RemoveExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	f := repository.RestrictionFilter{ExpiredBefore: &now}
	removed := 0
	for limit <= 0 || removed < limit {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		ok, err := reg.removeOne(ctx, f)
		if err != nil {
			return removed, fmt.Errorf("remove expired: %w", err)
		}
		if !ok {
			break
		}
		removed++
	}
	return removed, nil
}
