// Package memcache provides an implementation of condcache.Cache that uses
// gomemcache to store cached responses in a memcached server.
package memcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/veltrio/condcache"
)

// keyPrefix avoids collision with other data stored in memcached.
const keyPrefix = "condcache:"

// Cache is an implementation of condcache.Cache that caches responses in a
// memcache server.
type Cache struct {
	client *memcache.Client
}

// New returns a new Cache using the provided memcache server(s) with equal
// weight. If a server is listed multiple times, it gets a proportional
// amount of weight.
func New(server ...string) *Cache {
	return NewWithClient(memcache.New(server...))
}

// NewWithClient returns a new Cache with the given memcache client.
func NewWithClient(client *memcache.Client) *Cache {
	return &Cache{client: client}
}

// cacheKey derives a memcached-legal key. Raw keys embed request paths and
// method qualifiers, which can contain spaces and exceed memcached's 250
// byte limit, so the key is hashed to a fixed-length hex digest.
func cacheKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the stored bytes for key if present.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := c.client.Get(cacheKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("memcache: get %q: %w", key, err)
	}
	return item.Value, true, nil
}

// Set stores value against key with native expiry when ttl > 0.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiration int32
	if secs := int64(ttl / time.Second); secs > 0 && secs <= math.MaxInt32 {
		expiration = int32(secs)
	}
	item := &memcache.Item{
		Key:        cacheKey(key),
		Value:      value,
		Expiration: expiration,
	}
	if err := c.client.Set(item); err != nil {
		return fmt.Errorf("memcache: set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry with key. A miss is not an error.
func (c *Cache) Delete(_ context.Context, key string) error {
	if err := c.client.Delete(cacheKey(key)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("memcache: delete %q: %w", key, err)
	}
	return nil
}

// Ping checks server reachability.
func (c *Cache) Ping(_ context.Context) error {
	return c.client.Ping()
}

var (
	_ condcache.Cache  = (*Cache)(nil)
	_ condcache.Pinger = (*Cache)(nil)
)
