package handler

import (
	"net/http"

	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/service"
	"github.com/go-chi/chi/v5"
)

// TournamentHandler serves the public tournament listing and the join flow.
type TournamentHandler struct {
	tournaments *service.TournamentService
	joins       *service.JoinService
}

// NewTournamentHandler creates a new TournamentHandler.
func NewTournamentHandler(tournaments *service.TournamentService, joins *service.JoinService) *TournamentHandler {
	return &TournamentHandler{tournaments: tournaments, joins: joins}
}

// List handles GET /tournaments.
func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.tournaments.List(r.Context(), viewerID(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, list)
}

// Get handles GET /tournaments/{id}.
func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.tournaments.Get(r.Context(), chi.URLParam(r, "id"), viewerID(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

type joinRequest struct {
	Username string `json:"username"`
}

type joinResponse struct {
	Tournament    domain.TournamentView `json:"tournament"`
	Participant   domain.Participant    `json:"participant"`
	WalletBalance int64                 `json:"walletBalance"`
	Resumed       bool                  `json:"resumed"`
}

// Join handles POST /tournaments/{id}/join.
func (h *TournamentHandler) Join(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req joinRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	res, err := h.joins.Join(r.Context(), p, chi.URLParam(r, "id"), req.Username)
	if err != nil {
		RespondError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	RespondJSON(w, status, joinResponse{
		Tournament:    domain.NewTournamentView(*res.Tournament, p.UID),
		Participant:   res.Participant,
		WalletBalance: res.Balance,
		Resumed:       res.Resumed,
	})
}

// Mine handles GET /me/tournaments.
func (h *TournamentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	list, err := h.tournaments.Mine(r.Context(), p.UID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, list)
}
