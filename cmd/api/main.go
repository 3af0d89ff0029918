package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/battlegrounds/tournaments/internal/app"
	"github.com/battlegrounds/tournaments/internal/auth"
	"github.com/battlegrounds/tournaments/internal/guard"
	"github.com/battlegrounds/tournaments/internal/infra"
	"github.com/battlegrounds/tournaments/internal/projection"
	"github.com/battlegrounds/tournaments/internal/registration"
	"github.com/battlegrounds/tournaments/internal/repository"
	"github.com/battlegrounds/tournaments/internal/service"
	"github.com/battlegrounds/tournaments/internal/status"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	opened, err := infra.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer opened.Close()

	clock := clockwork.NewRealClock()
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTUserExpiry, cfg.JWTAdminExpiry, clock)

	// Repositories
	tournaments := repository.NewTournamentRepository(opened.Store)
	users := repository.NewUserRepository(opened.Store)
	outbox := repository.NewOutboxRepository(opened.Store)

	// Lifecycle
	schedule := status.NewSchedule(loc, cfg.MatchDuration)
	evaluator := status.NewEvaluator(tournaments, outbox, schedule, logger)
	scheduler := status.NewScheduler(evaluator, cfg.StatusEvalInterval, clock, logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start status scheduler: %w", err)
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Error("stop status scheduler", "error", err)
		}
	}()

	// Services
	userSvc := service.NewUserService(users, projection.NewInMemoryStore(clock), clock, logger)
	tournamentSvc := service.NewTournamentService(tournaments, evaluator, schedule, clock, logger)
	engine := registration.NewEngine(users, tournaments, outbox, clock, logger)
	joinSvc := service.NewJoinService(engine, userSvc,
		guard.NewInFlightGuard(),
		guard.NewRateLimiter(cfg.JoinRateLimit, cfg.JoinRateWindow, clock),
		logger)

	r := app.NewRouter(app.RouterDeps{
		Tournaments: tournamentSvc,
		Users:       userSvc,
		Joins:       joinSvc,
		JWTMgr:      jwtMgr,
		Logger:      logger,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Health:      opened.Health,
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "store_driver", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
