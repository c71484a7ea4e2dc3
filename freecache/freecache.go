// Package freecache provides a high-performance, zero-GC overhead
// implementation of condcache.Cache using github.com/coocood/freecache.
//
// This backend suits applications caching many entries with bounded memory:
// the cache size is fixed up front and the least recently used entries are
// evicted when it fills.
package freecache

import (
	"context"
	"time"

	"github.com/coocood/freecache"

	"github.com/veltrio/condcache"
)

// Cache is an implementation of condcache.Cache backed by freecache.
type Cache struct {
	cache *freecache.Cache
}

// New creates a Cache with the given size in bytes (512KB minimum, enforced
// by freecache).
//
// For large sizes consider lowering the GC target:
//
//	cache := freecache.New(100 * 1024 * 1024) // 100MB
//	debug.SetGCPercent(20)
func New(size int) *Cache {
	return &Cache{cache: freecache.NewCache(size)}
}

// Get returns the stored bytes for key if present.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value against key with native expiry. Oversized entries are
// rejected by freecache; the error propagates so the caller can fail open.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return c.cache.Set([]byte(key), value, int(ttl/time.Second))
}

// Delete removes the entry with key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.cache.Del([]byte(key))
	return nil
}

// Clear removes all entries.
func (c *Cache) Clear(_ context.Context) error {
	c.cache.Clear()
	return nil
}

// Len returns the current entry count.
func (c *Cache) Len(_ context.Context) (int64, error) {
	return c.cache.EntryCount(), nil
}

// HitRate returns the ratio of lookups answered from the cache.
func (c *Cache) HitRate() float64 {
	return c.cache.HitRate()
}

var (
	_ condcache.Cache   = (*Cache)(nil)
	_ condcache.Clearer = (*Cache)(nil)
	_ condcache.Counter = (*Cache)(nil)
)
