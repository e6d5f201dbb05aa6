package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/repository"
)

// MessagePublisher is the subset of KafkaProducer the poller needs.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// OutboxPoller polls the event_outbox table and publishes events to Kafka.
// Events are relayed in id order; a publish failure stops the batch so later
// events for the same partition key are not sent ahead of it.
type OutboxPoller struct {
	db        repository.DBTX
	repo      repository.OutboxRepository
	producer  MessagePublisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(db repository.DBTX, repo repository.OutboxRepository, producer MessagePublisher, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxPoller {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		db:        db,
		repo:      repo,
		producer:  producer,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// outboxMessage is the Kafka value for a relayed event.
type outboxMessage struct {
	EventID       string          `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Poll relays one batch and returns how many events were published.
func (p *OutboxPoller) Poll(ctx context.Context) (int, error) {
	events, err := p.repo.FetchUnpublished(ctx, p.db, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(events))
	var publishErr error
	for _, e := range events {
		if publishErr = p.publish(ctx, e); publishErr != nil {
			p.logger.Error("kafka publish failed", "event_id", e.EventID, "event_type", e.EventType, "error", publishErr)
			break
		}
		published = append(published, e.SeqID)
	}

	if err := p.repo.MarkPublished(ctx, p.db, published); err != nil {
		return 0, err
	}

	p.logger.Debug("outbox poll complete", "published", len(published), "fetched", len(events))
	if publishErr != nil {
		return len(published), fmt.Errorf("publish event: %w", publishErr)
	}
	return len(published), nil
}

func (p *OutboxPoller) publish(ctx context.Context, e domain.OutboxDraft) error {
	msg, err := json.Marshal(outboxMessage{
		EventID:       e.EventID.String(),
		AggregateType: string(e.AggregateType),
		AggregateID:   e.AggregateID,
		EventType:     string(e.EventType),
		Payload:       e.Payload,
		OccurredAt:    e.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox message: %w", err)
	}

	var headers map[string]string
	if len(e.Headers) > 0 {
		if err := json.Unmarshal(e.Headers, &headers); err != nil {
			p.logger.Warn("outbox headers ignored", "event_id", e.EventID, "error", err)
			headers = nil
		}
	}

	// Topic is the event type, e.g. moderation.restriction.added.
	return p.producer.Publish(ctx, string(e.EventType), []byte(e.PartitionKey), msg, headers)
}
