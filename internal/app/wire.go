package app

import (
	"log/slog"

	"github.com/battlegrounds/tournaments/internal/auth"
	"github.com/battlegrounds/tournaments/internal/handler"
	adminhandler "github.com/battlegrounds/tournaments/internal/handler/admin"
	"github.com/battlegrounds/tournaments/internal/service"
	"github.com/go-chi/chi/v5"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Tournaments *service.TournamentService
	Users       *service.UserService
	Joins       *service.JoinService
	JWTMgr      *auth.JWTManager
	Logger      *slog.Logger
	CORSOrigins []string
	Health      handler.HealthCheck
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	jwtMgr := deps.JWTMgr
	logger := deps.Logger

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Handlers
	tournamentHandler := handler.NewTournamentHandler(deps.Tournaments, deps.Joins)
	profileHandler := handler.NewProfileHandler(deps.Users)

	// Admin handlers
	tournamentAdmin := adminhandler.NewTournamentAdminHandler(deps.Tournaments)
	userAdmin := adminhandler.NewUserAdminHandler(deps.Users)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.RequestID)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(origins...))
	r.Use(handler.JSONContentType)

	r.Get("/health", handler.HealthHandler(deps.Health))

	// Public listing; a valid token only personalises hasJoined.
	r.Group(func(r chi.Router) {
		r.Use(auth.Optional(jwtMgr))

		r.Get("/tournaments", tournamentHandler.List)
		r.Get("/tournaments/{id}", tournamentHandler.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(jwtMgr))

		r.Post("/tournaments/{id}/join", tournamentHandler.Join)
		r.Get("/me", profileHandler.GetMe)
		r.Get("/me/tournaments", tournamentHandler.Mine)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.Authenticate(jwtMgr))
		r.Use(auth.RequireAdmin())

		r.Get("/tournaments", tournamentAdmin.List)
		r.Post("/tournaments", tournamentAdmin.Create)
		r.Post("/tournaments/evaluate", tournamentAdmin.Evaluate)
		r.Patch("/tournaments/{id}", tournamentAdmin.Update)

		r.Get("/users", userAdmin.List)
		r.Post("/users/{uid}/wallet", userAdmin.AdjustWallet)
		r.Patch("/users/{uid}/role", userAdmin.SetRole)
	})

	return r
}
