package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewStatusChangedEvent records a lifecycle transition written by the evaluator.
func NewStatusChangedEvent(tournamentID string, from, to Status, at time.Time) OutboxDraft {
	payload, _ := json.Marshal(map[string]string{
		"tournament_id": tournamentID,
		"from":          string(from),
		"to":            string(to),
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateTournament,
		AggregateID:   tournamentID,
		EventType:     EventStatusChanged,
		Payload:       payload,
		OccurredAt:    at,
	}
}

// NewJoinCompletedEvent records a successful registration. entryFee is the
// amount actually debited for it.
func NewJoinCompletedEvent(t *Tournament, p Participant, entryFee, balanceAfter int64) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"tournament_id": t.ID,
		"user_id":       p.UserID,
		"username":      p.Username,
		"entry_fee":     entryFee,
		"balance_after": balanceAfter,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateTournament,
		AggregateID:   t.ID,
		EventType:     EventJoinCompleted,
		Payload:       payload,
		OccurredAt:    p.JoinedAt,
	}
}

// NewJoinPartialFailureEvent records a debit without a matching registration
// so reconciliation tooling can refund or register the user.
func NewJoinPartialFailureEvent(p *PartialJoinError, entryFee int64, at time.Time) OutboxDraft {
	cause := ""
	if p.Cause != nil {
		cause = p.Cause.Error()
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"tournament_id": p.TournamentID,
		"user_id":       p.UserID,
		"entry_fee":     entryFee,
		"compensated":   p.Compensated,
		"cause":         cause,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateUser,
		AggregateID:   p.UserID,
		EventType:     EventJoinPartialFailure,
		Payload:       payload,
		OccurredAt:    at,
	}
}
