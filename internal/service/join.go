package service

import (
	"context"
	"log/slog"

	"github.com/battlegrounds/tournaments/internal/auth"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/guard"
	"github.com/battlegrounds/tournaments/internal/registration"
)

// JoinService guards and runs join transactions for signed-in users.
type JoinService struct {
	engine   *registration.Engine
	users    *UserService
	inflight *guard.InFlightGuard
	limiter  *guard.RateLimiter
	logger   *slog.Logger
}

// NewJoinService creates a JoinService.
func NewJoinService(
	engine *registration.Engine,
	users *UserService,
	inflight *guard.InFlightGuard,
	limiter *guard.RateLimiter,
	logger *slog.Logger,
) *JoinService {
	return &JoinService{
		engine:   engine,
		users:    users,
		inflight: inflight,
		limiter:  limiter,
		logger:   logger,
	}
}

// Join registers the principal in tournamentID.
func (s *JoinService) Join(ctx context.Context, p auth.Principal, tournamentID, username string) (*registration.Result, error) {
	if s.limiter != nil {
		if r := s.limiter.Check(p.UID); !r.Allowed {
			return nil, domain.ErrRateLimited(r.Reason)
		}
	}
	if s.inflight != nil {
		r, release := s.inflight.Acquire(guard.JoinKey(p.UID, tournamentID))
		if !r.Allowed {
			return nil, domain.ErrConflict(r.Reason)
		}
		defer release()
	}

	if _, err := s.users.EnsureUser(ctx, p); err != nil {
		return nil, err
	}

	// Once money can move, a disconnecting client must not strand the debit
	// between the two writes.
	ctx = context.WithoutCancel(ctx)
	res, err := s.engine.Join(ctx, p.UID, tournamentID, username)
	// A failed join may still have moved money (refunds, stranded debits).
	s.users.Invalidate(ctx, p.UID)
	if err != nil {
		return nil, err
	}
	return res, nil
}
