package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
)

type tournamentRepo struct {
	store docstore.Store
}

// NewTournamentRepository returns a docstore-backed TournamentRepository.
func NewTournamentRepository(store docstore.Store) TournamentRepository {
	return &tournamentRepo{store: store}
}

func (r *tournamentRepo) ListAll(ctx context.Context) ([]domain.Tournament, []DecodeFailure, error) {
	docs, err := r.store.GetAll(ctx, docstore.CollectionTournaments)
	if err != nil {
		return nil, nil, fmt.Errorf("list tournaments: %w", err)
	}

	out := make([]domain.Tournament, 0, len(docs))
	var failures []DecodeFailure
	for i := range docs {
		t, err := decodeTournament(&docs[i])
		if err != nil {
			failures = append(failures, DecodeFailure{ID: docs[i].ID, Err: err})
			continue
		}
		out = append(out, *t)
	}
	return out, failures, nil
}

func (r *tournamentRepo) FindByID(ctx context.Context, id string) (*domain.Tournament, error) {
	doc, err := r.store.GetOne(ctx, docstore.CollectionTournaments, id)
	if err != nil {
		return nil, fmt.Errorf("find tournament %s: %w", id, err)
	}
	return decodeTournament(doc)
}

func (r *tournamentRepo) Create(ctx context.Context, t *domain.Tournament) error {
	if t.Participants == nil {
		t.Participants = []domain.Participant{}
	}
	fields, err := docstore.Fields(t)
	if err != nil {
		return err
	}
	if err := r.store.Create(ctx, docstore.CollectionTournaments, t.ID, fields); err != nil {
		return fmt.Errorf("create tournament %s: %w", t.ID, err)
	}
	t.Version = 1
	return nil
}

func (r *tournamentRepo) UpdateStatus(ctx context.Context, t *domain.Tournament, status domain.Status) error {
	err := r.store.CompareAndUpdate(ctx, docstore.CollectionTournaments, t.ID, t.Version,
		map[string]interface{}{"status": string(status)})
	if err != nil {
		return fmt.Errorf("update tournament %s status: %w", t.ID, err)
	}
	t.Status = status
	t.Version++
	return nil
}

func (r *tournamentRepo) AppendParticipant(ctx context.Context, t *domain.Tournament, p domain.Participant) error {
	participants := append(slices.Clone(t.Participants), p)
	list, err := toList(participants)
	if err != nil {
		return err
	}
	err = r.store.CompareAndUpdate(ctx, docstore.CollectionTournaments, t.ID, t.Version,
		map[string]interface{}{"participants": list})
	if err != nil {
		return fmt.Errorf("append participant to %s: %w", t.ID, err)
	}
	t.Participants = participants
	t.Version++
	return nil
}

func (r *tournamentRepo) UpdateFields(ctx context.Context, t *domain.Tournament, fields map[string]interface{}) error {
	if err := r.store.CompareAndUpdate(ctx, docstore.CollectionTournaments, t.ID, t.Version, fields); err != nil {
		return fmt.Errorf("update tournament %s: %w", t.ID, err)
	}
	t.Version++
	return nil
}

func decodeTournament(doc *docstore.Document) (*domain.Tournament, error) {
	var t domain.Tournament
	if err := docstore.Decode(doc, &t); err != nil {
		return nil, err
	}
	t.ID = doc.ID
	t.Version = doc.Version
	t.Status = t.Status.Normalize()
	return &t, nil
}

// toList converts a typed slice into the plain JSON shape the store persists.
func toList[T any](items []T) (interface{}, error) {
	fields, err := docstore.Fields(map[string]interface{}{"v": items})
	if err != nil {
		return nil, err
	}
	return fields["v"], nil
}
