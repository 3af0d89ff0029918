package guard

import (
	"sync"
)

// InFlightGuard rejects a second request for a key while the first is still
// running. Keys are released when the holder finishes.
type InFlightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewInFlightGuard creates an empty in-flight guard.
func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{active: make(map[string]struct{})}
}

// Acquire claims key. The returned release must be called when allowed.
func (g *InFlightGuard) Acquire(key string) (Result, func()) {
	if key == "" {
		return allow(), func() {}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[key]; busy {
		return Result{
			Allowed: false,
			Reason:  "a join for this tournament is already in progress",
			Guard:   "in_flight",
		}, func() {}
	}

	g.active[key] = struct{}{}
	var once sync.Once
	return allow(), func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, key)
			g.mu.Unlock()
		})
	}
}

// JoinKey is the in-flight key for one user joining one tournament.
func JoinKey(userID, tournamentID string) string {
	return userID + "/" + tournamentID
}
