package registration

import (
	"github.com/battlegrounds/tournaments/internal/domain"
)

// Validate runs the join checks in order and returns the sanitized username:
// username, already joined, open for registration, balance, capacity.
func Validate(u *domain.User, t *domain.Tournament, candidate string) (string, error) {
	return validate(u, t, candidate, true)
}

func validate(u *domain.User, t *domain.Tournament, candidate string, checkBalance bool) (string, error) {
	username, err := domain.SanitizeUsername(candidate)
	if err != nil {
		return "", err
	}
	if t.HasParticipant(u.UID) {
		return "", domain.ErrAlreadyJoined()
	}
	if t.Status.Normalize() != domain.StatusUpcoming {
		return "", domain.ErrTournamentNotOpen(t.Status)
	}
	if checkBalance && u.WalletBalance < t.EntryFee {
		return "", domain.ErrInsufficientBalance()
	}
	if t.IsFull() {
		return "", domain.ErrTournamentFull()
	}
	return username, nil
}

// revalidateSlot repeats the tournament-side checks after a fresh read.
func revalidateSlot(userID string, t *domain.Tournament) error {
	if t.HasParticipant(userID) {
		return domain.ErrAlreadyJoined()
	}
	if t.Status.Normalize() != domain.StatusUpcoming {
		return domain.ErrTournamentNotOpen(t.Status)
	}
	if t.IsFull() {
		return domain.ErrTournamentFull()
	}
	return nil
}

// refundable reports whether a rejection means the held entry fee must go back.
func refundable(err error) bool {
	return domain.HasCode(err, domain.CodeTournamentNotOpen) || domain.HasCode(err, domain.CodeTournamentFull)
}
