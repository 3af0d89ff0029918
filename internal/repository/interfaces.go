package repository

import (
	"context"
	"time"

	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/google/uuid"
)

// DecodeFailure is a stored document that could not be read into its domain type.
type DecodeFailure struct {
	ID  string
	Err error
}

// TournamentRepository provides access to the tournaments collection.
type TournamentRepository interface {
	// ListAll returns every decodable tournament. Documents that fail to decode
	// are reported separately so one bad record never hides the rest.
	ListAll(ctx context.Context) ([]domain.Tournament, []DecodeFailure, error)

	// FindByID returns a tournament or an error wrapping docstore.ErrNotFound.
	FindByID(ctx context.Context, id string) (*domain.Tournament, error)

	// Create inserts a new tournament.
	Create(ctx context.Context, t *domain.Tournament) error

	// UpdateStatus writes only the status field, guarded by t.Version.
	UpdateStatus(ctx context.Context, t *domain.Tournament, status domain.Status) error

	// AppendParticipant writes participants with p appended, guarded by t.Version.
	AppendParticipant(ctx context.Context, t *domain.Tournament, p domain.Participant) error

	// UpdateFields writes descriptive fields, guarded by t.Version.
	UpdateFields(ctx context.Context, t *domain.Tournament, fields map[string]interface{}) error
}

// UserRepository provides access to the users collection.
type UserRepository interface {
	// FindByID returns a user or an error wrapping docstore.ErrNotFound.
	FindByID(ctx context.Context, uid string) (*domain.User, error)

	// Create inserts a new user document.
	Create(ctx context.Context, u *domain.User) error

	// ListAll returns every decodable user.
	ListAll(ctx context.Context) ([]domain.User, []DecodeFailure, error)

	// UpdateWallet writes walletBalance, joinedTournaments and entryFeesPaid
	// together, guarded by u.Version.
	UpdateWallet(ctx context.Context, u *domain.User, w domain.Wallet) error

	// UpdateRole writes only the role field.
	UpdateRole(ctx context.Context, uid string, role domain.Role) error
}

// OutboxRepository provides access to the outbox collection.
type OutboxRepository interface {
	// Insert records an event for the relay.
	Insert(ctx context.Context, draft domain.OutboxDraft) error

	// FetchUnpublished returns the oldest unpublished events.
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished stamps publishedAt on the given events.
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
