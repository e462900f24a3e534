package ai

import (
	"context"
	"fmt"
	"sync"
)

// BudgetChecker checks and records token usage per caller.
type BudgetChecker interface {
	// Check reports whether caller has budget remaining.
	Check(ctx context.Context, caller string) (bool, error)
	// Record adds tokens to caller's usage.
	Record(ctx context.Context, caller string, tokens int) error
	// Usage returns caller's usage and limit. A zero limit means unlimited.
	Usage(ctx context.Context, caller string) (used int64, limit int64, err error)
}

// InMemoryBudget tracks token usage in process. It is meant for a single
// instance; usage is lost on restart.
type InMemoryBudget struct {
	mu       sync.RWMutex
	defLimit int64
	limits   map[string]int64
	usage    map[string]int64
}

// NewInMemoryBudget creates a tracker where every caller gets defaultLimit
// tokens. Zero means unlimited.
func NewInMemoryBudget(defaultLimit int64) *InMemoryBudget {
	return &InMemoryBudget{
		defLimit: defaultLimit,
		limits:   make(map[string]int64),
		usage:    make(map[string]int64),
	}
}

// SetBudget overrides the limit for one caller.
func (b *InMemoryBudget) SetBudget(caller string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[caller] = tokens
}

func (b *InMemoryBudget) limit(caller string) int64 {
	if l, ok := b.limits[caller]; ok {
		return l
	}
	return b.defLimit
}

func (b *InMemoryBudget) Check(_ context.Context, caller string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	limit := b.limit(caller)
	if limit <= 0 {
		return true, nil
	}
	return b.usage[caller] < limit, nil
}

func (b *InMemoryBudget) Record(_ context.Context, caller string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[caller] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, caller string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[caller], b.limit(caller), nil
}
