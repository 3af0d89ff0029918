package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/guard"
	"github.com/battlegrounds/tournaments/internal/repository"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TopicPrefix namespaces every relayed event type.
const TopicPrefix = "tournaments."

// OutboxRelay polls the outbox collection and publishes events to Kafka.
type OutboxRelay struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	breaker   *guard.CircuitBreaker
	clock     clockwork.Clock
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxRelay creates a relay. Zero interval or batch size fall back to 2s
// and 100. A nil breaker publishes unguarded.
func NewOutboxRelay(outbox repository.OutboxRepository, publisher Publisher, breaker *guard.CircuitBreaker, clock clockwork.Clock, logger *slog.Logger, interval time.Duration, batchSize int) *OutboxRelay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		breaker:   breaker,
		clock:     clock,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.Chan():
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.Error("outbox relay error", "error", err)
			}
		}
	}
}

type relayMessage struct {
	EventID       uuid.UUID            `json:"eventId"`
	AggregateType domain.AggregateType `json:"aggregateType"`
	AggregateID   string               `json:"aggregateId"`
	EventType     domain.EventType     `json:"eventType"`
	Payload       json.RawMessage      `json:"payload"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// RelayOnce publishes one batch in occurrence order and stamps what was sent.
// A publish failure ends the batch so later events never overtake it.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	var (
		published []uuid.UUID
		pubErr    error
	)
	for _, e := range events {
		if err := r.publish(ctx, e); err != nil {
			r.logger.Error("kafka publish failed", "event_id", e.EventID, "event_type", e.EventType, "error", err)
			pubErr = fmt.Errorf("publish %s: %w", e.EventID, err)
			break
		}
		published = append(published, e.EventID)
	}

	if len(published) > 0 {
		if err := r.outbox.MarkPublished(ctx, published, r.clock.Now().UTC()); err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
	}

	r.logger.Debug("outbox relay pass complete", "published", len(published), "fetched", len(events))
	return len(published), pubErr
}

func (r *OutboxRelay) publish(ctx context.Context, e domain.OutboxDraft) error {
	topic := TopicPrefix + string(e.EventType)
	if r.breaker != nil {
		if res := r.breaker.Check(topic); !res.Allowed {
			return errors.New(res.Reason)
		}
	}

	msg, err := json.Marshal(relayMessage{
		EventID:       e.EventID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       e.Payload,
		OccurredAt:    e.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = r.publisher.Publish(ctx, topic, []byte(e.AggregateID), msg)
	if r.breaker != nil {
		if err != nil {
			r.breaker.RecordFailure(topic)
		} else {
			r.breaker.RecordSuccess(topic)
		}
	}
	return err
}
