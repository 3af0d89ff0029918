package repository

import (
	"context"
	"fmt"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
)

type userRepo struct {
	store docstore.Store
}

// NewUserRepository returns a docstore-backed UserRepository.
func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepo{store: store}
}

func (r *userRepo) FindByID(ctx context.Context, uid string) (*domain.User, error) {
	doc, err := r.store.GetOne(ctx, docstore.CollectionUsers, uid)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", uid, err)
	}
	return decodeUser(doc)
}

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	if u.JoinedTournaments == nil {
		u.JoinedTournaments = []string{}
	}
	fields, err := docstore.Fields(u)
	if err != nil {
		return err
	}
	if err := r.store.Create(ctx, docstore.CollectionUsers, u.UID, fields); err != nil {
		return fmt.Errorf("create user %s: %w", u.UID, err)
	}
	u.Version = 1
	return nil
}

func (r *userRepo) ListAll(ctx context.Context) ([]domain.User, []DecodeFailure, error) {
	docs, err := r.store.GetAll(ctx, docstore.CollectionUsers)
	if err != nil {
		return nil, nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]domain.User, 0, len(docs))
	var failures []DecodeFailure
	for i := range docs {
		u, err := decodeUser(&docs[i])
		if err != nil {
			failures = append(failures, DecodeFailure{ID: docs[i].ID, Err: err})
			continue
		}
		out = append(out, *u)
	}
	return out, failures, nil
}

func (r *userRepo) UpdateWallet(ctx context.Context, u *domain.User, w domain.Wallet) error {
	if w.Joined == nil {
		w.Joined = []string{}
	}
	if w.Paid == nil {
		w.Paid = map[string]int64{}
	}
	list, err := toList(w.Joined)
	if err != nil {
		return err
	}
	err = r.store.CompareAndUpdate(ctx, docstore.CollectionUsers, u.UID, u.Version, map[string]interface{}{
		"walletBalance":     w.Balance,
		"joinedTournaments": list,
		"entryFeesPaid":     w.Paid,
	})
	if err != nil {
		return fmt.Errorf("update wallet for %s: %w", u.UID, err)
	}
	u.WalletBalance = w.Balance
	u.JoinedTournaments = w.Joined
	u.EntryFeesPaid = w.Paid
	u.Version++
	return nil
}

func (r *userRepo) UpdateRole(ctx context.Context, uid string, role domain.Role) error {
	if err := r.store.Update(ctx, docstore.CollectionUsers, uid, map[string]interface{}{"role": string(role)}); err != nil {
		return fmt.Errorf("update role for %s: %w", uid, err)
	}
	return nil
}

func decodeUser(doc *docstore.Document) (*domain.User, error) {
	var u domain.User
	if err := docstore.Decode(doc, &u); err != nil {
		return nil, err
	}
	u.UID = doc.ID
	u.Version = doc.Version
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	return &u, nil
}
