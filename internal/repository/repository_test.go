package repository

import (
	"context"
	"testing"
	"time"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTournament(id string) *domain.Tournament {
	return &domain.Tournament{
		ID:              id,
		GameName:        "Erangel Classic",
		GameType:        "squad",
		TournamentDate:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		TournamentTime:  "18:00",
		EntryFee:        20,
		PrizePool:       500,
		MaxParticipants: 2,
		Status:          domain.StatusUpcoming,
	}
}

func TestTournamentRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewTournamentRepository(docstore.NewMemoryStore())

	tr := newTournament("t1")
	require.NoError(t, repo.Create(ctx, tr))
	assert.Equal(t, int64(1), tr.Version)

	got, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Erangel Classic", got.GameName)
	assert.Equal(t, int64(20), got.EntryFee)
	assert.True(t, got.TournamentDate.Equal(tr.TournamentDate))
	assert.NotNil(t, got.Participants)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestTournamentRepo_AppendParticipantGuardedByVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewTournamentRepository(docstore.NewMemoryStore())
	require.NoError(t, repo.Create(ctx, newTournament("t1")))

	first, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	stale, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)

	p := domain.Participant{UserID: "u1", Username: "alpha", JoinedAt: time.Now().UTC()}
	require.NoError(t, repo.AppendParticipant(ctx, first, p))
	assert.Len(t, first.Participants, 1)

	err = repo.AppendParticipant(ctx, stale, domain.Participant{UserID: "u2"})
	assert.ErrorIs(t, err, docstore.ErrVersionConflict)

	got, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, "alpha", got.Participants[0].Username)
}

func TestTournamentRepo_UpdateStatusWritesOnlyStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewTournamentRepository(docstore.NewMemoryStore())
	tr := newTournament("t1")
	require.NoError(t, repo.Create(ctx, tr))

	require.NoError(t, repo.UpdateStatus(ctx, tr, domain.StatusLive))
	assert.Equal(t, int64(2), tr.Version)

	got, err := repo.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLive, got.Status)
	assert.Equal(t, "Erangel Classic", got.GameName)
}

func TestTournamentRepo_ListAllReportsDecodeFailures(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewTournamentRepository(store)

	require.NoError(t, repo.Create(ctx, newTournament("good")))
	require.NoError(t, store.Create(ctx, docstore.CollectionTournaments, "bad",
		map[string]interface{}{"tournamentDate": "not-a-date"}))

	list, failures, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good", list[0].ID)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].ID)
}

func TestTournamentRepo_UnknownStatusReadsAsUpcoming(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Create(ctx, docstore.CollectionTournaments, "t1",
		map[string]interface{}{"gameName": "x", "status": ""}))

	got, err := NewTournamentRepository(store).FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUpcoming, got.Status)
}

func TestUserRepo_WalletUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(docstore.NewMemoryStore())

	u := &domain.User{UID: "u1", Email: "a@b.co", Role: domain.RoleUser, WalletBalance: 50}
	require.NoError(t, repo.Create(ctx, u))

	stale, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateWallet(ctx, u, u.Charge("t1", 20)))
	assert.Equal(t, int64(30), u.WalletBalance)

	err = repo.UpdateWallet(ctx, stale, domain.Wallet{})
	assert.ErrorIs(t, err, docstore.ErrVersionConflict)

	got, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.WalletBalance)
	assert.Equal(t, []string{"t1"}, got.JoinedTournaments)
	assert.Equal(t, map[string]int64{"t1": 20}, got.EntryFeesPaid)
	assert.Equal(t, "a@b.co", got.Email)

	w, refunded := got.Release("t1", 99)
	assert.Equal(t, int64(20), refunded)
	require.NoError(t, repo.UpdateWallet(ctx, got, w))

	got, err = repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.WalletBalance)
	assert.Empty(t, got.JoinedTournaments)
	assert.Empty(t, got.EntryFeesPaid)
}

func TestUserRepo_RoleAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(docstore.NewMemoryStore())
	require.NoError(t, repo.Create(ctx, &domain.User{UID: "u1", Role: domain.RoleUser}))
	require.NoError(t, repo.Create(ctx, &domain.User{UID: "u2"}))

	require.NoError(t, repo.UpdateRole(ctx, "u1", domain.RoleAdmin))
	assert.ErrorIs(t, repo.UpdateRole(ctx, "nobody", domain.RoleAdmin), docstore.ErrNotFound)

	users, failures, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, users, 2)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.Equal(t, domain.RoleUser, users[1].Role, "missing role defaults to user")
}

func TestOutboxRepo_FetchAndMark(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository(docstore.NewMemoryStore())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	later := domain.NewStatusChangedEvent("t2", domain.StatusLive, domain.StatusCompleted, base.Add(time.Minute))
	earlier := domain.NewStatusChangedEvent("t1", domain.StatusUpcoming, domain.StatusLive, base)
	require.NoError(t, repo.Insert(ctx, later))
	require.NoError(t, repo.Insert(ctx, earlier))

	events, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "t1", events[0].AggregateID)

	limited, err := repo.FetchUnpublished(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, repo.MarkPublished(ctx, []uuid.UUID{earlier.EventID}, base.Add(time.Hour)))

	events, err = repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, later.EventID, events[0].EventID)
}
