package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime/debug"

	"github.com/attaboy/muteregistry/internal/domain"
)

// Listener observes restriction records being added and removed.
// Calls are synchronous, on the goroutine that performed the store operation,
// once per record event. Returned errors are logged and never fail the operation.
type Listener interface {
	OnRestrictionAdded(ctx context.Context, r domain.Restriction) error
	OnRestrictionRemoved(ctx context.Context, r domain.Restriction) error
}

// ListenerFuncs adapts plain functions to Listener. Nil funcs are skipped.
type ListenerFuncs struct {
	Added   func(ctx context.Context, r domain.Restriction) error
	Removed func(ctx context.Context, r domain.Restriction) error
}

func (f ListenerFuncs) OnRestrictionAdded(ctx context.Context, r domain.Restriction) error {
	if f.Added == nil {
		return nil
	}
	return f.Added(ctx, r)
}

func (f ListenerFuncs) OnRestrictionRemoved(ctx context.Context, r domain.Restriction) error {
	if f.Removed == nil {
		return nil
	}
	return f.Removed(ctx, r)
}

func (reg *Registry) notifyAdded(ctx context.Context, r domain.Restriction) {
	for _, l := range reg.listeners {
		reg.deliver(ctx, domain.EventRestrictionAdded, r, l.OnRestrictionAdded)
	}
}

func (reg *Registry) notifyRemoved(ctx context.Context, r domain.Restriction) {
	for _, l := range reg.listeners {
		reg.deliver(ctx, domain.EventRestrictionRemoved, r, l.OnRestrictionRemoved)
	}
}

// deliver runs one listener callback with panics and errors contained.
func (reg *Registry) deliver(ctx context.Context, evt domain.EventType, r domain.Restriction, fn func(context.Context, domain.Restriction) error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.logger.Error("restriction listener panicked",
				"event", evt,
				"restriction_id", r.ID,
				"error", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := fn(ctx, r); err != nil {
		reg.logger.Warn("restriction listener failed",
			"event", evt,
			"restriction_id", r.ID,
			"identifier_type", r.Type,
			"error", err,
		)
	}
}

// discardLogger is used when no logger is supplied.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
