//go:build integration

package rediscache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/veltrio/condcache/test"
)

// startRedis launches a disposable Redis container and returns its address.
func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("resolving connection string: %v", err)
	}
	return strings.TrimPrefix(endpoint, "redis://")
}

func TestIntegration(t *testing.T) {
	ctx := context.Background()
	cache, err := New(ctx, Config{Address: startRedis(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cache.Close() //nolint:errcheck // test cleanup

	t.Run("cache", func(t *testing.T) { test.Cache(t, cache) })
	t.Run("clear", func(t *testing.T) { test.Clearer(t, cache) })
	t.Run("len", func(t *testing.T) { test.Counter(t, cache) })

	t.Run("ttl", func(t *testing.T) {
		if err := cache.Set(ctx, "ephemeral", []byte("v"), time.Second); err != nil {
			t.Fatalf("Set: %v", err)
		}
		time.Sleep(1100 * time.Millisecond)
		if _, ok, _ := cache.Get(ctx, "ephemeral"); ok {
			t.Fatal("entry survived its TTL")
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})
}
