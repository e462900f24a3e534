package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Budget tracks per-caller token usage in Redis so every instance shares it.
// Usage resets when a caller's window expires.
type Budget struct {
	cache  *Cache
	limit  int64
	window time.Duration
}

// NewBudget creates a token budget of limit tokens per window. A zero limit
// means unlimited; a zero window means 24 hours.
func NewBudget(c *Cache, limit int64, window time.Duration) *Budget {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Budget{cache: c, limit: limit, window: window}
}

func budgetKey(caller string) string { return "budget:tokens:" + caller }

func (b *Budget) used(ctx context.Context, caller string) (int64, error) {
	n, err := b.cache.Client.Get(ctx, budgetKey(caller)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget get %s: %w", caller, err)
	}
	return n, nil
}

// Check reports whether caller has tokens left in the current window.
func (b *Budget) Check(ctx context.Context, caller string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	used, err := b.used(ctx, caller)
	if err != nil {
		return false, err
	}
	return used < b.limit, nil
}

// Record adds tokens to caller's usage. The first write of a window sets
// its expiry.
func (b *Budget) Record(ctx context.Context, caller string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	key := budgetKey(caller)
	_, err := b.cache.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.IncrBy(ctx, key, int64(tokens))
		pipe.ExpireNX(ctx, key, b.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("budget record %s: %w", caller, err)
	}
	return nil
}

// Usage returns caller's usage in the current window and the limit.
func (b *Budget) Usage(ctx context.Context, caller string) (int64, int64, error) {
	used, err := b.used(ctx, caller)
	if err != nil {
		return 0, 0, err
	}
	return used, b.limit, nil
}
