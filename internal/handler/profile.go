package handler

import (
	"net/http"

	"github.com/battlegrounds/tournaments/internal/service"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	users *service.UserService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(users *service.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// GetMe handles GET /me. The user document is provisioned on first sight.
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	profile, err := h.users.Profile(r.Context(), p)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, profile)
}
