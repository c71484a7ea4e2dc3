package leveldbcache

import (
	"context"
	"testing"
	"time"

	"github.com/veltrio/condcache/test"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		if err := cache.Close(); err != nil {
			t.Errorf("closing database: %v", err)
		}
	})
	return cache
}

func TestCache(t *testing.T) {
	test.Cache(t, newTestCache(t))
}

func TestClear(t *testing.T) {
	test.Clearer(t, newTestCache(t))
}

func TestLen(t *testing.T) {
	test.Counter(t, newTestCache(t))
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	want := []string{"alpha", "beta", "gamma"}
	for _, key := range want {
		if err := cache.Set(ctx, key, []byte(key), time.Minute); err != nil {
			t.Fatalf("Set %q: %v", key, err)
		}
	}
	keys, err := cache.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != len(want) {
		t.Fatalf("Keys returned %d entries, want %d", len(keys), len(want))
	}
}
