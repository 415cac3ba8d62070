package cache

import (
	"context"
	"sync"
	"time"
)

// IntentGuard makes sure a payment intent is settled at most once across
// concurrent confirmations.
type IntentGuard interface {
	// Claim returns true if ref was not already claimed within ttl.
	Claim(ctx context.Context, ref string, ttl time.Duration) (bool, error)
	// Release drops a claim so a failed settlement can be retried.
	Release(ctx context.Context, ref string) error
}

// InMemoryIntentGuard is suitable for single-instance deployments and tests.
type InMemoryIntentGuard struct {
	mu      sync.Mutex
	claims  map[string]time.Time
	nowFunc func() time.Time
}

func NewInMemoryIntentGuard() *InMemoryIntentGuard {
	return &InMemoryIntentGuard{
		claims:  make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

func (g *InMemoryIntentGuard) Claim(ctx context.Context, ref string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	for key, expiresAt := range g.claims {
		if now.After(expiresAt) {
			delete(g.claims, key)
		}
	}

	if _, exists := g.claims[ref]; exists {
		return false, nil
	}
	g.claims[ref] = now.Add(ttl)
	return true, nil
}

func (g *InMemoryIntentGuard) Release(ctx context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, ref)
	return nil
}
