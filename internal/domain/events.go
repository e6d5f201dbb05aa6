package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RestrictionEvent is the wire form of a registry notification, shared by the
// outbox, the Redis bus and the live feed.
type RestrictionEvent struct {
	Type        EventType   `json:"type"`
	Restriction Restriction `json:"restriction"`
	InstanceID  string      `json:"instance_id,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// NewRestrictionEvent wraps a record in an event of the given type.
func NewRestrictionEvent(evtType EventType, r Restriction) RestrictionEvent {
	return RestrictionEvent{
		Type:        evtType,
		Restriction: r,
		OccurredAt:  time.Now().UTC(),
	}
}

// NewRestrictionOutboxDraft creates the outbox row for a restriction add/remove.
// Events are partitioned by identifier value so all changes to one value stay ordered.
func NewRestrictionOutboxDraft(evtType EventType, r Restriction) OutboxDraft {
	payload, _ := json.Marshal(r)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateRestriction,
		AggregateID:   r.ID.String(),
		EventType:     evtType,
		PartitionKey:  r.Value,
		Headers:       json.RawMessage(`{"identifier_type":"` + string(r.Type) + `"}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
