package admin

import (
	"net/http"

	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/handler"
	"github.com/battlegrounds/tournaments/internal/service"
	"github.com/go-chi/chi/v5"
)

// TournamentAdminHandler handles admin tournament management.
type TournamentAdminHandler struct {
	tournaments *service.TournamentService
}

// NewTournamentAdminHandler creates a new TournamentAdminHandler.
func NewTournamentAdminHandler(tournaments *service.TournamentService) *TournamentAdminHandler {
	return &TournamentAdminHandler{tournaments: tournaments}
}

// List handles GET /admin/tournaments.
func (h *TournamentAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.tournaments.AdminList(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, list)
}

// Create handles POST /admin/tournaments.
func (h *TournamentAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.TournamentInput
	if err := handler.DecodeJSON(r, &in); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	t, err := h.tournaments.Create(r.Context(), in)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, domain.NewAdminTournamentView(*t))
}

// Update handles PATCH /admin/tournaments/{id}.
func (h *TournamentAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch service.TournamentPatch
	if err := handler.DecodeJSON(r, &patch); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body: status and participants are not editable"))
		return
	}
	t, err := h.tournaments.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, domain.NewAdminTournamentView(*t))
}

// Evaluate handles POST /admin/tournaments/evaluate.
func (h *TournamentAdminHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	report, err := h.tournaments.Evaluate(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, report)
}
