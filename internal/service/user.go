package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/battlegrounds/tournaments/internal/auth"
	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/projection"
	"github.com/battlegrounds/tournaments/internal/repository"
	"github.com/jonboulle/clockwork"
)

// UserService manages user documents, profiles and admin wallet changes.
type UserService struct {
	users  repository.UserRepository
	cache  projection.Store
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewUserService creates a UserService. cache may be nil.
func NewUserService(users repository.UserRepository, cache projection.Store, clock clockwork.Clock, logger *slog.Logger) *UserService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UserService{users: users, cache: cache, clock: clock, logger: logger}
}

// EnsureUser returns the principal's user document, creating it with a zero
// balance on first sight. A principal without a valid email is not provisioned.
func (s *UserService) EnsureUser(ctx context.Context, p auth.Principal) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, p.UID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, storeError("load user", "user", p.UID, err)
	}
	if err := domain.ValidateEmail(p.Email); err != nil {
		return nil, domain.ErrValidation(fmt.Sprintf("cannot provision account: %v", err))
	}

	u = &domain.User{
		UID:               p.UID,
		Email:             p.Email,
		Role:              domain.RoleUser,
		WalletBalance:     0,
		JoinedTournaments: []string{},
		CreatedAt:         s.clock.Now().UTC(),
	}
	err = s.users.Create(ctx, u)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		// Lost a race with a concurrent first request.
		u, err = s.users.FindByID(ctx, p.UID)
		if err != nil {
			return nil, storeError("load user", "user", p.UID, err)
		}
		return u, nil
	}
	if err != nil {
		return nil, storeError("create user", "user", p.UID, err)
	}
	s.logger.Info("user provisioned", "user_id", p.UID)
	return u, nil
}

// Profile returns the principal's profile view, served from cache when fresh.
func (s *UserService) Profile(ctx context.Context, p auth.Principal) (*domain.Profile, error) {
	if s.cache != nil {
		if cached, err := projection.GetProfile(ctx, s.cache, p.UID); err == nil {
			return cached, nil
		}
	}

	u, err := s.EnsureUser(ctx, p)
	if err != nil {
		return nil, err
	}
	profile := toProfile(u)
	if s.cache != nil {
		if err := projection.PutProfile(ctx, s.cache, profile); err != nil {
			s.logger.Warn("profile cache write failed", "user_id", p.UID, "error", err)
		}
	}
	return &profile, nil
}

// Invalidate drops the cached profile for uid.
func (s *UserService) Invalidate(ctx context.Context, uid string) {
	if s.cache == nil {
		return
	}
	if err := projection.InvalidateProfile(ctx, s.cache, uid); err != nil {
		s.logger.Warn("profile cache invalidation failed", "user_id", uid, "error", err)
	}
}

// List returns every user for the admin console.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, failures, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("list users", err)
	}
	for _, f := range failures {
		s.logger.Warn("skipping undecodable user", "user_id", f.ID, "error", f.Err)
	}
	return users, nil
}

// AdjustWallet adds a signed amount to uid's balance. The result may not go negative.
func (s *UserService) AdjustWallet(ctx context.Context, uid string, amount int64) (*domain.User, error) {
	if amount == 0 {
		return nil, domain.ErrValidation("amount must not be zero")
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		u, err := s.users.FindByID(ctx, uid)
		if err != nil {
			return nil, storeError("load user", "user", uid, err)
		}
		balance := u.WalletBalance + amount
		if balance < 0 {
			return nil, domain.ErrValidation(fmt.Sprintf("balance %d cannot cover %d", u.WalletBalance, amount))
		}

		w := u.Wallet()
		w.Balance = balance
		err = s.users.UpdateWallet(ctx, u, w)
		if errors.Is(err, docstore.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, storeError("update wallet", "user", uid, err)
		}

		s.Invalidate(ctx, uid)
		s.logger.Info("wallet adjusted", "user_id", uid, "amount", amount, "balance", balance)
		return u, nil
	}
	return nil, domain.ErrConflict("wallet is being updated concurrently, try again")
}

// SetRole changes uid's role.
func (s *UserService) SetRole(ctx context.Context, uid string, role domain.Role) error {
	if !role.Valid() {
		return domain.ErrValidation(fmt.Sprintf("unknown role %q", role))
	}
	if err := s.users.UpdateRole(ctx, uid, role); err != nil {
		return storeError("update role", "user", uid, err)
	}
	s.Invalidate(ctx, uid)
	s.logger.Info("role changed", "user_id", uid, "role", string(role))
	return nil
}

func toProfile(u *domain.User) domain.Profile {
	return domain.Profile{
		UID:           u.UID,
		Email:         u.Email,
		Role:          u.Role,
		WalletBalance: u.WalletBalance,
		JoinedCount:   len(u.JoinedTournaments),
		CreatedAt:     u.CreatedAt,
	}
}
