package admin

import (
	"net/http"

	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/handler"
	"github.com/battlegrounds/tournaments/internal/service"
	"github.com/go-chi/chi/v5"
)

// UserAdminHandler handles admin user management.
type UserAdminHandler struct {
	users *service.UserService
}

// NewUserAdminHandler creates a new UserAdminHandler.
func NewUserAdminHandler(users *service.UserService) *UserAdminHandler {
	return &UserAdminHandler{users: users}
}

// List handles GET /admin/users.
func (h *UserAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, users)
}

type walletRequest struct {
	Amount int64 `json:"amount"`
}

// AdjustWallet handles POST /admin/users/{uid}/wallet.
func (h *UserAdminHandler) AdjustWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	u, err := h.users.AdjustWallet(r.Context(), chi.URLParam(r, "uid"), req.Amount)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, u)
}

type roleRequest struct {
	Role domain.Role `json:"role"`
}

// SetRole handles PATCH /admin/users/{uid}/role.
func (h *UserAdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	uid := chi.URLParam(r, "uid")
	if err := h.users.SetRole(r.Context(), uid, req.Role); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]string{"uid": uid, "role": string(req.Role)})
}
