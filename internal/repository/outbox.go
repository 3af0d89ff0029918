package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/google/uuid"
)

type outboxRepo struct {
	store docstore.Store
}

// NewOutboxRepository returns a docstore-backed OutboxRepository.
func NewOutboxRepository(store docstore.Store) OutboxRepository {
	return &outboxRepo{store: store}
}

func (r *outboxRepo) Insert(ctx context.Context, draft domain.OutboxDraft) error {
	fields, err := docstore.Fields(draft)
	if err != nil {
		return err
	}
	if err := r.store.Create(ctx, docstore.CollectionOutbox, draft.EventID.String(), fields); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished returns up to limit events without publishedAt, oldest first.
func (r *outboxRepo) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error) {
	docs, err := r.store.GetAll(ctx, docstore.CollectionOutbox)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}

	var events []domain.OutboxDraft
	for i := range docs {
		var d domain.OutboxDraft
		if err := docstore.Decode(&docs[i], &d); err != nil {
			return nil, err
		}
		if d.PublishedAt == nil {
			events = append(events, d)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *outboxRepo) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	for _, id := range ids {
		err := r.store.Update(ctx, docstore.CollectionOutbox, id.String(),
			map[string]interface{}{"publishedAt": at.UTC().Format(time.RFC3339Nano)})
		if err != nil {
			return fmt.Errorf("mark published %s: %w", id, err)
		}
	}
	return nil
}
