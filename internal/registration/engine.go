// Package registration implements joining a tournament: a validated wallet
// debit followed by a participant append, with compensation when the second
// write cannot land.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/repository"
	"github.com/jonboulle/clockwork"
)

// DefaultMaxAttempts bounds retries after version conflicts.
const DefaultMaxAttempts = 3

// Result is the outcome of a successful join.
type Result struct {
	User        *domain.User       `json:"-"`
	Tournament  *domain.Tournament `json:"-"`
	Participant domain.Participant `json:"participant"`
	Balance     int64              `json:"walletBalance"`

	// Resumed is true when an earlier attempt had already taken the fee and
	// this call only completed the registration.
	Resumed bool `json:"resumed"`
}

// Engine executes join transactions against the document store.
type Engine struct {
	users       repository.UserRepository
	tournaments repository.TournamentRepository
	outbox      repository.OutboxRepository
	clock       clockwork.Clock
	logger      *slog.Logger
	maxAttempts int
}

// NewEngine creates a join Engine. outbox may be nil.
func NewEngine(
	users repository.UserRepository,
	tournaments repository.TournamentRepository,
	outbox repository.OutboxRepository,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		users:       users,
		tournaments: tournaments,
		outbox:      outbox,
		clock:       clock,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
	}
}

// Join registers userID in tournamentID under the candidate username.
//
// Validation errors are returned as-is. PARTIAL_JOIN_FAILURE means the fee was
// taken but the registration did not land; the wrapped PartialJoinError says
// whether the refund was applied. Calling Join again after an unrefunded
// partial failure completes the registration without charging twice.
func (e *Engine) Join(ctx context.Context, userID, tournamentID, candidate string) (*Result, error) {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		user, t, err := e.load(ctx, userID, tournamentID)
		if err != nil {
			return nil, err
		}

		resumed := user.HasJoined(t.ID) && !t.HasParticipant(user.UID)
		username, err := validate(user, t, candidate, !resumed)
		if err != nil {
			if resumed && refundable(err) {
				e.releaseStranded(ctx, user.UID, t, err)
			}
			return nil, err
		}

		// charged is what this registration has cost the wallet, captured
		// before the append can swap t for a fresher read.
		charged := t.EntryFee
		if resumed {
			charged = user.PaidFor(t.ID, t.EntryFee)
		} else {
			err := e.users.UpdateWallet(ctx, user, user.Charge(t.ID, charged))
			if errors.Is(err, docstore.ErrVersionConflict) {
				e.logger.Debug("wallet changed during join, retrying",
					"user_id", userID, "tournament_id", tournamentID, "attempt", attempt)
				continue
			}
			if err != nil {
				return nil, domain.ErrStoreUnavailable("debit wallet", err)
			}
		}

		p := domain.Participant{
			UserID:   user.UID,
			Email:    user.Email,
			Username: username,
			JoinedAt: e.clock.Now().UTC(),
		}
		if err := e.appendParticipant(ctx, user.UID, t, p); err != nil {
			return nil, e.failAppend(ctx, user.UID, t, charged, err)
		}

		e.record(ctx, domain.NewJoinCompletedEvent(t, p, charged, user.WalletBalance))
		e.logger.Info("tournament joined",
			"user_id", user.UID,
			"tournament_id", t.ID,
			"entry_fee", charged,
			"resumed", resumed,
		)
		return &Result{User: user, Tournament: t, Participant: p, Balance: user.WalletBalance, Resumed: resumed}, nil
	}

	return nil, domain.ErrConflict("wallet is being updated concurrently, try again")
}

func (e *Engine) load(ctx context.Context, userID, tournamentID string) (*domain.User, *domain.Tournament, error) {
	t, err := e.tournaments.FindByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil, domain.ErrNotFound("tournament", tournamentID)
		}
		return nil, nil, domain.ErrStoreUnavailable("load tournament", err)
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil, domain.ErrNotFound("user", userID)
		}
		return nil, nil, domain.ErrStoreUnavailable("load user", err)
	}
	return user, t, nil
}

// appendParticipant retries the guarded append against fresh reads until it
// lands or the tournament no longer accepts the user.
func (e *Engine) appendParticipant(ctx context.Context, userID string, t *domain.Tournament, p domain.Participant) error {
	for attempt := 1; ; attempt++ {
		err := e.tournaments.AppendParticipant(ctx, t, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrVersionConflict) || attempt >= e.maxAttempts {
			return err
		}

		fresh, err := e.tournaments.FindByID(ctx, t.ID)
		if err != nil {
			return err
		}
		*t = *fresh
		if err := revalidateSlot(userID, t); err != nil {
			return err
		}
	}
}

// failAppend decides what a failed append means for the charged debit.
func (e *Engine) failAppend(ctx context.Context, userID string, t *domain.Tournament, charged int64, cause error) error {
	// A concurrent request by the same user registered first; the one debit
	// on the wallet paid for that registration.
	if domain.HasCode(cause, domain.CodeAlreadyJoined) {
		return cause
	}

	refunded := e.compensate(ctx, userID, t.ID, charged)
	if refundable(cause) && refunded {
		return cause
	}

	p := &domain.PartialJoinError{
		UserID:       userID,
		TournamentID: t.ID,
		Compensated:  refunded,
		Cause:        cause,
	}
	e.record(ctx, domain.NewJoinPartialFailureEvent(p, charged, e.clock.Now().UTC()))
	e.logger.Error("join partial failure: wallet debited but participant not recorded",
		"user_id", userID,
		"tournament_id", t.ID,
		"entry_fee", charged,
		"compensated", refunded,
		"error", cause,
	)
	return domain.ErrPartialJoin(p)
}

// releaseStranded refunds a fee left behind by an earlier partial failure once
// the tournament can no longer take the user.
func (e *Engine) releaseStranded(ctx context.Context, userID string, t *domain.Tournament, reason error) {
	if e.compensate(ctx, userID, t.ID, t.EntryFee) {
		e.logger.Info("refunded stranded join debit",
			"user_id", userID, "tournament_id", t.ID, "reason", reason.Error())
	}
}

// compensate refunds the fee recorded for tournamentID and removes it from the
// user's joined set. fallback is refunded for holds with no recorded fee. It
// reports whether the refund landed.
func (e *Engine) compensate(ctx context.Context, userID, tournamentID string, fallback int64) bool {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		user, err := e.users.FindByID(ctx, userID)
		if err != nil {
			e.logger.Error("compensation read failed", "user_id", userID, "tournament_id", tournamentID, "error", err)
			return false
		}
		if !user.HasJoined(tournamentID) {
			// Nothing held for this tournament.
			return true
		}

		wallet, amount := user.Release(tournamentID, fallback)
		err = e.users.UpdateWallet(ctx, user, wallet)
		if err == nil {
			e.logger.Debug("join debit refunded", "user_id", userID, "tournament_id", tournamentID, "amount", amount)
			return true
		}
		if !errors.Is(err, docstore.ErrVersionConflict) {
			e.logger.Error("compensation write failed", "user_id", userID, "tournament_id", tournamentID, "error", err)
			return false
		}
	}
	e.logger.Error("compensation gave up after version conflicts", "user_id", userID, "tournament_id", tournamentID)
	return false
}

func (e *Engine) record(ctx context.Context, draft domain.OutboxDraft) {
	if e.outbox == nil {
		return
	}
	if err := e.outbox.Insert(ctx, draft); err != nil {
		e.logger.Warn("failed to record outbox event",
			"event_type", string(draft.EventType),
			"aggregate_id", draft.AggregateID,
			"error", fmt.Errorf("insert: %w", err),
		)
	}
}
