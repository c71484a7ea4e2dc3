// Package rediscache provides a Redis-backed implementation of
// condcache.Cache using github.com/redis/go-redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veltrio/condcache"
)

// DefaultKeyPrefix namespaces cache keys to avoid collision with other data
// stored in the same Redis database.
const DefaultKeyPrefix = "condcache:"

// Cache is an implementation of condcache.Cache that stores entries in a
// Redis server. TTLs are applied natively via key expiry.
type Cache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// Config holds the configuration for creating a Redis cache.
type Config struct {
	// Address is the Redis server address (e.g., "localhost:6379"). Required.
	Address string

	// Password for authentication. Optional.
	Password string

	// DB is the Redis database number. Optional, defaults to 0.
	DB int

	// KeyPrefix namespaces all cache keys. Optional, defaults to
	// DefaultKeyPrefix.
	KeyPrefix string
}

// New connects to Redis and returns a Cache. The connection is verified
// with a PING before returning.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.Address == "" {
		return nil, errors.New("rediscache: address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // best effort cleanup after ping failure
		return nil, fmt.Errorf("rediscache: failed to connect: %w", err)
	}
	return NewWithClient(client, config.KeyPrefix), nil
}

// NewWithClient returns a Cache using an existing client. Pass "" for
// keyPrefix to use DefaultKeyPrefix.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Cache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Cache{client: client, keyPrefix: keyPrefix}
}

func (c *Cache) cacheKey(key string) string {
	return c.keyPrefix + key
}

// Get returns the stored bytes for key if present.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("rediscache: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value against key, with native Redis expiry when ttl > 0.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.cacheKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("rediscache: set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry with key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("rediscache: delete %q: %w", key, err)
	}
	return nil
}

// Keys returns all cache keys, with the namespace prefix stripped.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(c.keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("rediscache: scan: %w", err)
	}
	return keys, nil
}

// Len returns the number of cache entries in this namespace.
func (c *Cache) Len(ctx context.Context) (int64, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// Clear removes every entry in this namespace. Other data in the database
// is untouched.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("rediscache: clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("rediscache: clear scan: %w", err)
	}
	return nil
}

// Ping checks server reachability.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

var (
	_ condcache.Cache      = (*Cache)(nil)
	_ condcache.Enumerator = (*Cache)(nil)
	_ condcache.Counter    = (*Cache)(nil)
	_ condcache.Clearer    = (*Cache)(nil)
	_ condcache.Pinger     = (*Cache)(nil)
)
