package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/guard"
	"github.com/redis/go-redis/v9"
)

const busCircuit = "redis_bus"

// RedisClient is the part of *redis.Client the bus uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Bus fans restriction events out to other instances over a Redis channel.
// While the circuit breaker is open, events are dropped instead of waiting on Redis.
type Bus struct {
	client     RedisClient
	channel    string
	instanceID string
	breaker    *guard.CircuitBreaker
	logger     *slog.Logger
}

// NewBus creates a bus publishing on channel as instanceID.
func NewBus(client RedisClient, channel, instanceID string, breaker *guard.CircuitBreaker, logger *slog.Logger) *Bus {
	return &Bus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		breaker:    breaker,
		logger:     logger,
	}
}

func (b *Bus) OnRestrictionAdded(ctx context.Context, r domain.Restriction) error {
	return b.publish(ctx, domain.NewRestrictionEvent(domain.EventRestrictionAdded, r))
}

func (b *Bus) OnRestrictionRemoved(ctx context.Context, r domain.Restriction) error {
	return b.publish(ctx, domain.NewRestrictionEvent(domain.EventRestrictionRemoved, r))
}

func (b *Bus) publish(ctx context.Context, evt domain.RestrictionEvent) error {
	if res := b.breaker.Check(ctx, busCircuit); !res.Allowed {
		b.logger.Debug("bus publish skipped", "event", evt.Type, "reason", res.Reason)
		return nil
	}

	evt.InstanceID = b.instanceID
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal bus event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.breaker.RecordFailure(busCircuit)
		return fmt.Errorf("publish bus event: %w", err)
	}
	b.breaker.RecordSuccess(busCircuit)
	return nil
}

// Subscribe delivers events published by other instances to handler until ctx ends.
func (b *Bus) Subscribe(ctx context.Context, handler func(context.Context, domain.RestrictionEvent)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("bus subscribed", "channel", b.channel, "instance_id", b.instanceID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("bus subscription closed")
			}
			b.handleMessage(ctx, msg.Payload, handler)
		}
	}
}

func (b *Bus) handleMessage(ctx context.Context, payload string, handler func(context.Context, domain.RestrictionEvent)) {
	var evt domain.RestrictionEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn("bus event ignored", "error", err)
		return
	}
	if evt.InstanceID == b.instanceID {
		return
	}
	handler(ctx, evt)
}
