package domain

import (
	"slices"
	"time"
)

// Role is the user's access level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a document in the users collection, keyed by the identity provider's uid.
type User struct {
	UID               string    `json:"uid"`
	Email             string    `json:"email"`
	Role              Role      `json:"role"`
	WalletBalance     int64     `json:"walletBalance"`
	JoinedTournaments []string  `json:"joinedTournaments"`
	CreatedAt         time.Time `json:"createdAt"`

	// EntryFeesPaid is the fee debited per joined tournament. Refunds return it.
	EntryFeesPaid map[string]int64 `json:"entryFeesPaid,omitempty"`

	Version int64 `json:"-"`
}

// HasJoined reports whether tournamentID is in the user's joined set.
func (u *User) HasJoined(tournamentID string) bool {
	return slices.Contains(u.JoinedTournaments, tournamentID)
}

// WithJoined returns the joined set with tournamentID added once.
func (u *User) WithJoined(tournamentID string) []string {
	out := slices.Clone(u.JoinedTournaments)
	if out == nil {
		out = []string{}
	}
	if !slices.Contains(out, tournamentID) {
		out = append(out, tournamentID)
	}
	return out
}

// WithoutJoined returns the joined set with tournamentID removed.
func (u *User) WithoutJoined(tournamentID string) []string {
	out := make([]string, 0, len(u.JoinedTournaments))
	for _, id := range u.JoinedTournaments {
		if id != tournamentID {
			out = append(out, id)
		}
	}
	return out
}

// Wallet is the set of user fields a wallet write replaces together.
type Wallet struct {
	Balance int64
	Joined  []string
	Paid    map[string]int64
}

// Wallet returns a copy of the user's current wallet fields.
func (u *User) Wallet() Wallet {
	joined := slices.Clone(u.JoinedTournaments)
	if joined == nil {
		joined = []string{}
	}
	paid := make(map[string]int64, len(u.EntryFeesPaid))
	for id, fee := range u.EntryFeesPaid {
		paid[id] = fee
	}
	return Wallet{Balance: u.WalletBalance, Joined: joined, Paid: paid}
}

// Charge returns the wallet after paying fee to join tournamentID.
func (u *User) Charge(tournamentID string, fee int64) Wallet {
	w := u.Wallet()
	w.Balance -= fee
	w.Joined = u.WithJoined(tournamentID)
	w.Paid[tournamentID] = fee
	return w
}

// PaidFor returns the fee held for tournamentID. Holds written before fees
// were tracked report fallback.
func (u *User) PaidFor(tournamentID string, fallback int64) int64 {
	if fee, ok := u.EntryFeesPaid[tournamentID]; ok {
		return fee
	}
	return fallback
}

// Release returns the wallet with the fee held for tournamentID refunded and
// the tournament removed from the joined set, plus the amount refunded.
func (u *User) Release(tournamentID string, fallback int64) (Wallet, int64) {
	amount := u.PaidFor(tournamentID, fallback)
	w := u.Wallet()
	w.Balance += amount
	w.Joined = u.WithoutJoined(tournamentID)
	delete(w.Paid, tournamentID)
	return w, amount
}

// Profile is the view returned to the signed-in user.
type Profile struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	WalletBalance int64     `json:"walletBalance"`
	JoinedCount   int       `json:"joinedCount"`
	CreatedAt     time.Time `json:"createdAt"`
}
