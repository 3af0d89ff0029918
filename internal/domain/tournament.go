package domain

import (
	"slices"
	"time"
)

// Status is the tournament lifecycle state.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
)

// Rank orders statuses along the lifecycle. Unknown or empty values rank as upcoming.
func (s Status) Rank() int {
	switch s {
	case StatusLive:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 0
	}
}

// Normalize maps unknown stored values to upcoming.
func (s Status) Normalize() Status {
	switch s {
	case StatusLive, StatusCompleted:
		return s
	default:
		return StatusUpcoming
	}
}

// Participant is a user's registration inside a tournament. Immutable once appended.
type Participant struct {
	UserID   string    `json:"userId"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Tournament is a document in the tournaments collection.
type Tournament struct {
	ID              string        `json:"id"`
	GameName        string        `json:"gameName"`
	GameType        string        `json:"gameType"`
	TournamentDate  time.Time     `json:"tournamentDate"`
	TournamentTime  string        `json:"tournamentTime"`
	EntryFee        int64         `json:"entryFee"`
	PrizePool       int64         `json:"prizePool"`
	MaxParticipants int           `json:"maxParticipants"`
	Participants    []Participant `json:"participants"`
	Status          Status        `json:"status"`
	MatchDetails    string        `json:"matchDetails,omitempty"`
	Rules           string        `json:"rules,omitempty"`
	Description     string        `json:"description,omitempty"`
	Results         string        `json:"results,omitempty"`
	ResultImage     string        `json:"resultImage,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`

	// Version is maintained by the document store, not serialized in the body.
	Version int64 `json:"-"`
}

// HasParticipant reports whether userID is registered.
func (t *Tournament) HasParticipant(userID string) bool {
	return slices.ContainsFunc(t.Participants, func(p Participant) bool {
		return p.UserID == userID
	})
}

// IsFull reports whether no slot is left.
func (t *Tournament) IsFull() bool {
	return len(t.Participants) >= t.MaxParticipants
}

// TournamentView is a read snapshot of a tournament for one viewer.
type TournamentView struct {
	Tournament
	ParticipantCount int  `json:"participantCount"`
	HasJoined        bool `json:"hasJoined"`
}

// NewTournamentView builds the snapshot for viewerID (empty for anonymous).
// Room credentials are shown once the match is live, or earlier to joined
// players. Results are shown only after completion.
func NewTournamentView(t Tournament, viewerID string) TournamentView {
	v := NewAdminTournamentView(t)
	v.HasJoined = viewerID != "" && t.HasParticipant(viewerID)

	status := t.Status.Normalize()
	if status != StatusLive && !(status == StatusUpcoming && v.HasJoined) {
		v.MatchDetails = ""
	}
	if status != StatusCompleted {
		v.Results = ""
		v.ResultImage = ""
	}
	return v
}

// NewAdminTournamentView builds an unredacted snapshot.
func NewAdminTournamentView(t Tournament) TournamentView {
	t.Participants = slices.Clone(t.Participants)
	return TournamentView{
		Tournament:       t,
		ParticipantCount: len(t.Participants),
	}
}
