package condcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/veltrio/condcache"
	"github.com/veltrio/condcache/test"
)

func TestMemoryCache(t *testing.T) {
	test.Cache(t, condcache.NewMemoryCache())
}

func TestMemoryCacheClear(t *testing.T) {
	test.Clearer(t, condcache.NewMemoryCache())
}

func TestMemoryCacheLen(t *testing.T) {
	test.Counter(t, condcache.NewMemoryCache())
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	cache := condcache.NewMemoryCache()

	if err := cache.Set(ctx, "ephemeral", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := cache.Get(ctx, "ephemeral"); ok {
		t.Fatal("expired entry still served")
	}

	if err := cache.Set(ctx, "durable", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "durable"); !ok {
		t.Fatal("zero-TTL entry expired")
	}
}

func TestMemoryCacheKeys(t *testing.T) {
	ctx := context.Background()
	cache := condcache.NewMemoryCache()

	for _, key := range []string{"a", "b"} {
		if err := cache.Set(ctx, key, []byte(key), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	keys, err := cache.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Keys returned %d entries, want 2", len(keys))
	}
}
