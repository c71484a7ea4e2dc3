// Package resilientcache wraps a condcache.Cache with failsafe-go retry and
// circuit-breaker policies. A flapping or down store is retried briefly,
// then short-circuited so request latency never hinges on a dead backend;
// the middleware's fail-open handling turns the resulting errors into
// ordinary cache misses.
package resilientcache

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/veltrio/condcache"
)

// Config holds the resilience policies applied to store operations.
// Nil fields disable the corresponding policy.
type Config struct {
	// RetryPolicy applied to every store operation.
	RetryPolicy retrypolicy.RetryPolicy[any]

	// CircuitBreaker shared across all store operations.
	CircuitBreaker circuitbreaker.CircuitBreaker[any]
}

// RetryPolicyBuilder returns a retry policy builder with defaults suited to
// cache backends: up to 2 retries with a short exponential backoff, so a
// transient hiccup is absorbed without stalling the request path.
func RetryPolicyBuilder() retrypolicy.Builder[any] {
	return retrypolicy.NewBuilder[any]().
		WithMaxRetries(2).
		WithBackoff(5*time.Millisecond, 100*time.Millisecond)
}

// CircuitBreakerBuilder returns a circuit breaker builder with defaults
// suited to cache backends: open after 5 consecutive failures, probe again
// after 30 seconds.
func CircuitBreakerBuilder() circuitbreaker.Builder[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(30 * time.Second)
}

// Cache applies the configured policies around another condcache.Cache.
type Cache struct {
	cache    condcache.Cache
	executor failsafe.Executor[any]
}

// New wraps cache with the policies in config. With an empty config the
// wrapper is a transparent passthrough.
func New(cache condcache.Cache, config Config) *Cache {
	var policies []failsafe.Policy[any]
	if config.CircuitBreaker != nil {
		policies = append(policies, config.CircuitBreaker)
	}
	if config.RetryPolicy != nil {
		policies = append(policies, config.RetryPolicy)
	}
	return &Cache{
		cache:    cache,
		executor: failsafe.With[any](policies...),
	}
}

type getResult struct {
	value []byte
	ok    bool
}

// Get retrieves a value, retrying per policy. An open circuit returns
// circuitbreaker.ErrOpen immediately.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := c.executor.WithContext(ctx).Get(func() (any, error) {
		value, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return getResult{value: value, ok: ok}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := result.(getResult)
	return r.value, r.ok, nil
}

// Set stores a value, retrying per policy.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.executor.WithContext(ctx).Run(func() error {
		return c.cache.Set(ctx, key, value, ttl)
	})
}

// Delete removes a value, retrying per policy.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.executor.WithContext(ctx).Run(func() error {
		return c.cache.Delete(ctx, key)
	})
}

var _ condcache.Cache = (*Cache)(nil)
