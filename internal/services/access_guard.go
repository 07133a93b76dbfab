package services

import (
	"fmt"
	"sync"
	"sync/atomic"

	"nft-marketplace/internal/domain"
)

// AccessGuard holds the engine's privileged identities and the reentrancy
// marker. Every state-changing operation acquires the marker on entry and
// releases it on every exit path; a nested invocation (for example from a
// payout recipient's transfer callback) fails with ErrReentrant instead of
// observing in-flight state.
type AccessGuard struct {
	administrator string

	mu      sync.RWMutex
	curator string

	busy atomic.Bool
}

func NewAccessGuard(administrator, curator string) *AccessGuard {
	return &AccessGuard{
		administrator: administrator,
		curator:       curator,
	}
}

// Enter acquires the operation marker. Callers must pair it with Exit.
func (g *AccessGuard) Enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("operation already in flight: %w", domain.ErrReentrant)
	}
	return nil
}

func (g *AccessGuard) Exit() {
	g.busy.Store(false)
}

func (g *AccessGuard) Curator() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.curator
}

func (g *AccessGuard) IsAdministrator(caller string) bool {
	return caller != "" && caller == g.administrator
}

// CanManageListing reports whether caller may cancel a listing owned by
// owner: the owner themselves or the platform curator.
func (g *AccessGuard) CanManageListing(caller, owner string) bool {
	if caller == "" {
		return false
	}
	return caller == owner || caller == g.Curator()
}

// SetCurator rotates the curator identity. Administrator only.
func (g *AccessGuard) SetCurator(caller, newCurator string) error {
	if !g.IsAdministrator(caller) {
		return fmt.Errorf("only the administrator may set the curator: %w", domain.ErrUnauthorized)
	}
	g.mu.Lock()
	g.curator = newCurator
	g.mu.Unlock()
	return nil
}
