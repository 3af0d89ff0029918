package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventStatusChanged      EventType = "tournament.status.changed"
	EventJoinCompleted      EventType = "tournament.join.completed"
	EventJoinPartialFailure EventType = "tournament.join.partial_failure"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateTournament AggregateType = "tournament"
	AggregateUser       AggregateType = "user"
)

// OutboxDraft is a document in the outbox collection.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
	PublishedAt   *time.Time      `json:"publishedAt,omitempty"`
}
