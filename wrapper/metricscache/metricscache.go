// Package metricscache wraps a condcache.Cache so every store operation is
// reported to a metrics.Collector with its backend label, result and
// duration.
package metricscache

import (
	"context"
	"time"

	"github.com/veltrio/condcache"
	"github.com/veltrio/condcache/metrics"
)

// Cache instruments another condcache.Cache.
type Cache struct {
	cache     condcache.Cache
	backend   string
	collector metrics.Collector
}

// New wraps cache, labeling its operations with the backend name.
func New(cache condcache.Cache, backend string, collector metrics.Collector) *Cache {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Cache{cache: cache, backend: backend, collector: collector}
}

// Get reports hit/miss/error with the lookup duration.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.cache.Get(ctx, key)
	result := metrics.StatusMiss
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = metrics.StatusHit
	}
	c.collector.RecordCacheOperation("get", c.backend, result, time.Since(start))
	c.reportEntries(ctx)
	return value, ok, err
}

// Set reports success/error with the write duration.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.cache.Set(ctx, key, value, ttl)
	c.collector.RecordCacheOperation("set", c.backend, resultOf(err), time.Since(start))
	c.reportEntries(ctx)
	return err
}

// Delete reports success/error with the delete duration.
func (c *Cache) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := c.cache.Delete(ctx, key)
	c.collector.RecordCacheOperation("delete", c.backend, resultOf(err), time.Since(start))
	return err
}

// Clear passes through when the underlying cache supports it.
func (c *Cache) Clear(ctx context.Context) error {
	if clearer, ok := c.cache.(condcache.Clearer); ok {
		return clearer.Clear(ctx)
	}
	return nil
}

// Len passes through when the underlying cache supports it.
func (c *Cache) Len(ctx context.Context) (int64, error) {
	if counter, ok := c.cache.(condcache.Counter); ok {
		return counter.Len(ctx)
	}
	return 0, nil
}

// Ping passes through when the underlying cache supports it.
func (c *Cache) Ping(ctx context.Context) error {
	if pinger, ok := c.cache.(condcache.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (c *Cache) reportEntries(ctx context.Context) {
	if counter, ok := c.cache.(condcache.Counter); ok {
		if n, err := counter.Len(ctx); err == nil {
			c.collector.RecordEntries(c.backend, n)
		}
	}
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

var _ condcache.Cache = (*Cache)(nil)
