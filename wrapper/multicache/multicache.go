// Package multicache provides a multi-tiered condcache.Cache that cascades
// through multiple backends with automatic fallback and promotion. Tiers are
// ordered fastest/smallest first; hot entries migrate toward the faster
// tiers on read.
//
// Typical layering for an API instance:
//   - Tier 1: in-memory (fast, volatile)
//   - Tier 2: Redis (shared, persistent)
package multicache

import (
	"context"
	"time"

	"github.com/veltrio/condcache"
)

// MultiCache implements condcache.Cache over an ordered list of tiers.
type MultiCache struct {
	tiers []condcache.Cache
}

// New creates a MultiCache with the given tiers, ordered from fastest to
// slowest. Returns nil when no tiers are provided or any tier is nil or
// duplicated.
func New(tiers ...condcache.Cache) *MultiCache {
	if len(tiers) == 0 {
		return nil
	}
	seen := make(map[condcache.Cache]bool, len(tiers))
	for _, tier := range tiers {
		if tier == nil || seen[tier] {
			return nil
		}
		seen[tier] = true
	}
	return &MultiCache{tiers: tiers}
}

// Get searches each tier in order. A value found in a slower tier is
// promoted to all faster tiers; promotion failures are best-effort and do
// not affect the result. Tier errors are skipped so a degraded tier cannot
// take down reads that a later tier could answer.
func (c *MultiCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var firstErr error
	for i, tier := range c.tiers {
		value, ok, err := tier.Get(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			c.promote(ctx, key, value, i)
			return value, true, nil
		}
	}
	return nil, false, firstErr
}

// Set stores the value in every tier so each can apply its own eviction
// policy independently.
func (c *MultiCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.Set(ctx, key, value, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Delete removes the value from all tiers to maintain consistency.
func (c *MultiCache) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Clear clears every tier that supports it.
func (c *MultiCache) Clear(ctx context.Context) error {
	var firstErr error
	for _, tier := range c.tiers {
		if clearer, ok := tier.(condcache.Clearer); ok {
			if err := clearer.Clear(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Len reports the entry count of the slowest counting tier, which holds the
// most complete view of the cache.
func (c *MultiCache) Len(ctx context.Context) (int64, error) {
	for i := len(c.tiers) - 1; i >= 0; i-- {
		if counter, ok := c.tiers[i].(condcache.Counter); ok {
			return counter.Len(ctx)
		}
	}
	return 0, nil
}

// Ping checks every tier that supports it.
func (c *MultiCache) Ping(ctx context.Context) error {
	for _, tier := range c.tiers {
		if pinger, ok := tier.(condcache.Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Tier returns the i-th tier, or nil when out of range. Used by management
// surfaces that report per-tier health.
func (c *MultiCache) Tier(i int) condcache.Cache {
	if i < 0 || i >= len(c.tiers) {
		return nil
	}
	return c.tiers[i]
}

func (c *MultiCache) promote(ctx context.Context, key string, value []byte, foundAt int) {
	for i := 0; i < foundAt; i++ {
		if err := c.tiers[i].Set(ctx, key, value, 0); err != nil {
			condcache.GetLogger().Debug("tier promotion failed", "tier", i, "key", key, "error", err)
		}
	}
}

var (
	_ condcache.Cache   = (*MultiCache)(nil)
	_ condcache.Clearer = (*MultiCache)(nil)
	_ condcache.Counter = (*MultiCache)(nil)
	_ condcache.Pinger  = (*MultiCache)(nil)
)
