package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/repository"
	"github.com/battlegrounds/tournaments/internal/status"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TournamentService serves tournament listings and admin management.
type TournamentService struct {
	tournaments repository.TournamentRepository
	evaluator   status.Runner
	schedule    status.Schedule
	clock       clockwork.Clock
	logger      *slog.Logger
}

// NewTournamentService creates a TournamentService.
func NewTournamentService(
	tournaments repository.TournamentRepository,
	evaluator status.Runner,
	schedule status.Schedule,
	clock clockwork.Clock,
	logger *slog.Logger,
) *TournamentService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TournamentService{
		tournaments: tournaments,
		evaluator:   evaluator,
		schedule:    schedule,
		clock:       clock,
		logger:      logger,
	}
}

// List brings statuses up to date, then returns every tournament ordered
// upcoming, live, completed and by start within each group.
func (s *TournamentService) List(ctx context.Context, viewerID string) ([]domain.TournamentView, error) {
	list, err := s.sorted(ctx)
	if err != nil {
		return nil, err
	}
	return views(list, viewerID), nil
}

// AdminList is List without the viewer redaction.
func (s *TournamentService) AdminList(ctx context.Context) ([]domain.TournamentView, error) {
	list, err := s.sorted(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TournamentView, 0, len(list))
	for _, t := range list {
		out = append(out, domain.NewAdminTournamentView(t))
	}
	return out, nil
}

func (s *TournamentService) sorted(ctx context.Context) ([]domain.Tournament, error) {
	s.refresh(ctx)

	list, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		ri, rj := list[i].Status.Rank(), list[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		return s.schedule.SortTime(&list[i]).Before(s.schedule.SortTime(&list[j]))
	})
	return list, nil
}

// Mine returns the tournaments uid takes part in, newest date first.
func (s *TournamentService) Mine(ctx context.Context, uid string) ([]domain.TournamentView, error) {
	s.refresh(ctx)

	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	var mine []domain.Tournament
	for i := range all {
		if all[i].HasParticipant(uid) {
			mine = append(mine, all[i])
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].TournamentDate.After(mine[j].TournamentDate)
	})
	return views(mine, uid), nil
}

// Get returns one tournament as seen by viewerID.
func (s *TournamentService) Get(ctx context.Context, id, viewerID string) (*domain.TournamentView, error) {
	s.refresh(ctx)

	t, err := s.tournaments.FindByID(ctx, id)
	if err != nil {
		return nil, storeError("load tournament", "tournament", id, err)
	}
	v := domain.NewTournamentView(*t, viewerID)
	return &v, nil
}

// Evaluate runs the status evaluator now.
func (s *TournamentService) Evaluate(ctx context.Context) (*status.Report, error) {
	return s.evaluator.EvaluateAndPersist(ctx, s.clock.Now())
}

// refresh runs the evaluator before a read. A failed run is logged and the
// read proceeds with stored statuses.
func (s *TournamentService) refresh(ctx context.Context) {
	if _, err := s.evaluator.EvaluateAndPersist(ctx, s.clock.Now()); err != nil {
		s.logger.Error("status evaluation before read failed", "error", err)
	}
}

func (s *TournamentService) loadAll(ctx context.Context) ([]domain.Tournament, error) {
	list, failures, err := s.tournaments.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("list tournaments", err)
	}
	for _, f := range failures {
		s.logger.Warn("skipping undecodable tournament", "tournament_id", f.ID, "error", f.Err)
	}
	return list, nil
}

func views(list []domain.Tournament, viewerID string) []domain.TournamentView {
	out := make([]domain.TournamentView, 0, len(list))
	for _, t := range list {
		out = append(out, domain.NewTournamentView(t, viewerID))
	}
	return out
}

// TournamentInput is the admin payload for creating a tournament.
type TournamentInput struct {
	GameName        string    `json:"gameName"`
	GameType        string    `json:"gameType"`
	TournamentDate  time.Time `json:"tournamentDate"`
	TournamentTime  string    `json:"tournamentTime"`
	EntryFee        int64     `json:"entryFee"`
	PrizePool       int64     `json:"prizePool"`
	MaxParticipants int       `json:"maxParticipants"`
	MatchDetails    string    `json:"matchDetails"`
	Rules           string    `json:"rules"`
	Description     string    `json:"description"`
}

func (in *TournamentInput) validate() error {
	if strings.TrimSpace(in.GameName) == "" {
		return domain.ErrValidation("gameName is required")
	}
	if in.TournamentDate.IsZero() {
		return domain.ErrValidation("tournamentDate is required")
	}
	if in.MaxParticipants <= 0 {
		return domain.ErrValidation("maxParticipants must be positive")
	}
	if err := validateTimeOfDay(in.TournamentTime); err != nil {
		return err
	}
	if err := domain.ValidateNonNegativeAmount("entryFee", in.EntryFee); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateNonNegativeAmount("prizePool", in.PrizePool); err != nil {
		return domain.ErrValidation(err.Error())
	}
	return nil
}

// validateTimeOfDay rejects times the schedule cannot place. Stored values
// that fail to parse are legacy data and stay upcoming.
func validateTimeOfDay(raw string) error {
	if _, ok := status.ParseTimeOfDay(raw); !ok {
		return domain.ErrValidation(fmt.Sprintf("tournamentTime %q is not a recognised time of day, use e.g. 18:00 or 6:00 PM", raw))
	}
	return nil
}

// Create stores a new upcoming tournament with no participants.
func (s *TournamentService) Create(ctx context.Context, in TournamentInput) (*domain.Tournament, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := &domain.Tournament{
		ID:              uuid.NewString(),
		GameName:        strings.TrimSpace(in.GameName),
		GameType:        strings.TrimSpace(in.GameType),
		TournamentDate:  in.TournamentDate.UTC(),
		TournamentTime:  strings.TrimSpace(in.TournamentTime),
		EntryFee:        in.EntryFee,
		PrizePool:       in.PrizePool,
		MaxParticipants: in.MaxParticipants,
		Participants:    []domain.Participant{},
		Status:          domain.StatusUpcoming,
		MatchDetails:    in.MatchDetails,
		Rules:           in.Rules,
		Description:     in.Description,
		CreatedAt:       s.clock.Now().UTC(),
	}
	if err := s.tournaments.Create(ctx, t); err != nil {
		return nil, storeError("create tournament", "tournament", t.ID, err)
	}
	s.logger.Info("tournament created", "tournament_id", t.ID, "game_name", t.GameName)
	return t, nil
}

// TournamentPatch is the admin payload for editing a tournament. Status and
// participants are owned by the evaluator and the join flow and cannot be set.
type TournamentPatch struct {
	GameName        *string    `json:"gameName"`
	GameType        *string    `json:"gameType"`
	TournamentDate  *time.Time `json:"tournamentDate"`
	TournamentTime  *string    `json:"tournamentTime"`
	EntryFee        *int64     `json:"entryFee"`
	PrizePool       *int64     `json:"prizePool"`
	MaxParticipants *int       `json:"maxParticipants"`
	MatchDetails    *string    `json:"matchDetails"`
	Rules           *string    `json:"rules"`
	Description     *string    `json:"description"`
	Results         *string    `json:"results"`
	ResultImage     *string    `json:"resultImage"`
}

func (p *TournamentPatch) fields(t *domain.Tournament) (map[string]interface{}, error) {
	f := map[string]interface{}{}
	if p.GameName != nil {
		if strings.TrimSpace(*p.GameName) == "" {
			return nil, domain.ErrValidation("gameName must not be empty")
		}
		f["gameName"] = strings.TrimSpace(*p.GameName)
	}
	if p.GameType != nil {
		f["gameType"] = *p.GameType
	}
	if p.TournamentDate != nil {
		f["tournamentDate"] = p.TournamentDate.UTC().Format(time.RFC3339)
	}
	if p.TournamentTime != nil {
		if err := validateTimeOfDay(*p.TournamentTime); err != nil {
			return nil, err
		}
		f["tournamentTime"] = strings.TrimSpace(*p.TournamentTime)
	}
	if p.EntryFee != nil {
		if err := domain.ValidateNonNegativeAmount("entryFee", *p.EntryFee); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		f["entryFee"] = *p.EntryFee
	}
	if p.PrizePool != nil {
		if err := domain.ValidateNonNegativeAmount("prizePool", *p.PrizePool); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		f["prizePool"] = *p.PrizePool
	}
	if p.MaxParticipants != nil {
		if *p.MaxParticipants <= 0 {
			return nil, domain.ErrValidation("maxParticipants must be positive")
		}
		if *p.MaxParticipants < len(t.Participants) {
			return nil, domain.ErrValidation("maxParticipants cannot drop below the current participant count")
		}
		f["maxParticipants"] = *p.MaxParticipants
	}
	if p.MatchDetails != nil {
		f["matchDetails"] = *p.MatchDetails
	}
	if p.Rules != nil {
		f["rules"] = *p.Rules
	}
	if p.Description != nil {
		f["description"] = *p.Description
	}
	if p.Results != nil {
		f["results"] = *p.Results
	}
	if p.ResultImage != nil {
		f["resultImage"] = *p.ResultImage
	}
	if len(f) == 0 {
		return nil, domain.ErrValidation("no fields to update")
	}
	return f, nil
}

// Update applies an admin patch, re-checking capacity against a fresh read
// when a join lands in between.
func (s *TournamentService) Update(ctx context.Context, id string, patch TournamentPatch) (*domain.Tournament, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		t, err := s.tournaments.FindByID(ctx, id)
		if err != nil {
			return nil, storeError("load tournament", "tournament", id, err)
		}
		fields, err := patch.fields(t)
		if err != nil {
			return nil, err
		}

		err = s.tournaments.UpdateFields(ctx, t, fields)
		if errors.Is(err, docstore.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, storeError("update tournament", "tournament", id, err)
		}

		updated, err := s.tournaments.FindByID(ctx, id)
		if err != nil {
			return nil, storeError("load tournament", "tournament", id, err)
		}
		s.logger.Info("tournament updated", "tournament_id", id, "fields", len(fields))
		return updated, nil
	}
	return nil, domain.ErrConflict("tournament is being modified concurrently, try again")
}
