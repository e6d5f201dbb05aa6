package notify

import (
	"context"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/infra"
)

// FeedRoom is the hub room every moderation feed connection joins.
const FeedRoom = "moderation"

// Feed pushes restriction events to connected moderation dashboards.
type Feed struct {
	hub *infra.WSHub
}

// NewFeed creates a feed listener over hub.
func NewFeed(hub *infra.WSHub) *Feed {
	return &Feed{hub: hub}
}

func (f *Feed) OnRestrictionAdded(ctx context.Context, r domain.Restriction) error {
	f.Relay(ctx, domain.NewRestrictionEvent(domain.EventRestrictionAdded, r))
	return nil
}

func (f *Feed) OnRestrictionRemoved(ctx context.Context, r domain.Restriction) error {
	f.Relay(ctx, domain.NewRestrictionEvent(domain.EventRestrictionRemoved, r))
	return nil
}

// Relay publishes an already-built event, such as one received from the bus.
func (f *Feed) Relay(_ context.Context, evt domain.RestrictionEvent) {
	f.hub.Publish(FeedRoom, string(evt.Type), evt)
}
