// Package condcache provides server-side HTTP response caching middleware
// with conditional-request support (If-None-Match / If-Modified-Since) per
// RFC 7232 and output caching per RFC 9111.
//
// The middleware buffers downstream responses, derives a strong ETag from the
// response body, evaluates the request's validators and short-circuits with
// 304 Not Modified when they match. Successful 200 responses to GET/HEAD are
// stored in a pluggable Cache backend keyed by a deterministic request
// fingerprint, and evicted when the owning resource is mutated.
//
// Caching is a performance optimization, never a correctness dependency:
// every failure inside the cache layer degrades to serving an uncached but
// correct response.
package condcache

import (
	"context"
	"sync"
	"time"
)

// A Cache is used by the Middleware to store and retrieve encoded responses.
type Cache interface {
	// Get returns the stored bytes for key and true if present.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value against key. ttl is advisory: backends with native
	// expiry should honor it, others may ignore it; entry expiry is always
	// enforced by the entry codec on read.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the value associated with the key.
	Delete(ctx context.Context, key string) error
}

// Clearer is implemented by backends that can drop all entries at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Enumerator is implemented by backends that can list their keys.
// Used by the management API for pattern-based eviction.
type Enumerator interface {
	Keys(ctx context.Context) ([]string, error)
}

// Counter is implemented by backends that can report their entry count.
type Counter interface {
	Len(ctx context.Context) (int64, error)
}

// Pinger is implemented by backends with a remote server whose reachability
// can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryCache is an implementation of Cache that stores entries in an
// in-memory map with per-entry expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryCache returns a new Cache that stores items in an in-memory map.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]memoryItem{}}
}

// Get returns the stored bytes for key and true if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return item.value, true, nil
}

// Set stores value against key, expiring it after ttl if ttl > 0.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

// Delete removes key from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.items = map[string]memoryItem{}
	c.mu.Unlock()
	return nil
}

// Keys returns all non-expired keys.
func (c *MemoryCache) Keys(_ context.Context) ([]string, error) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.items))
	for k, item := range c.items {
		if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Len returns the number of stored entries, including not yet pruned
// expired ones.
func (c *MemoryCache) Len(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.items)), nil
}
