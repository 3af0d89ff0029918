package projection

import (
	"context"
	"time"

	"github.com/battlegrounds/tournaments/internal/domain"
)

const profileTTL = 30 * time.Second

func profileKey(uid string) string {
	return "projection:profile:" + uid
}

// PutProfile caches a user's profile view.
func PutProfile(ctx context.Context, store Store, p domain.Profile) error {
	return SetJSON(ctx, store, profileKey(p.UID), p, profileTTL)
}

// GetProfile returns a cached profile or ErrMiss.
func GetProfile(ctx context.Context, store Store, uid string) (*domain.Profile, error) {
	var p domain.Profile
	if err := GetJSON(ctx, store, profileKey(uid), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// InvalidateProfile drops a cached profile after its wallet or role changes.
func InvalidateProfile(ctx context.Context, store Store, uid string) error {
	return store.Delete(ctx, profileKey(uid))
}
