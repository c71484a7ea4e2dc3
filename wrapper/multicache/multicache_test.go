package multicache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veltrio/condcache"
	"github.com/veltrio/condcache/test"
)

func TestCache(t *testing.T) {
	test.Cache(t, New(condcache.NewMemoryCache(), condcache.NewMemoryCache()))
}

func TestClear(t *testing.T) {
	test.Clearer(t, New(condcache.NewMemoryCache(), condcache.NewMemoryCache()))
}

func TestNewValidation(t *testing.T) {
	if New() != nil {
		t.Fatal("expected nil for zero tiers")
	}
	if New(nil) != nil {
		t.Fatal("expected nil for a nil tier")
	}
	tier := condcache.NewMemoryCache()
	if New(tier, tier) != nil {
		t.Fatal("expected nil for a duplicated tier")
	}
}

func TestPromotionOnRead(t *testing.T) {
	ctx := context.Background()
	fast := condcache.NewMemoryCache()
	slow := condcache.NewMemoryCache()
	multi := New(fast, slow)

	if err := slow.Set(ctx, "warm", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := multi.Get(ctx, "warm")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(value) != "v" {
		t.Fatalf("got %q", value)
	}

	if _, ok, _ := fast.Get(ctx, "warm"); !ok {
		t.Fatal("value not promoted to the faster tier")
	}
}

func TestSetWritesAllTiers(t *testing.T) {
	ctx := context.Background()
	fast := condcache.NewMemoryCache()
	slow := condcache.NewMemoryCache()
	multi := New(fast, slow)

	if err := multi.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for name, tier := range map[string]condcache.Cache{"fast": fast, "slow": slow} {
		if _, ok, _ := tier.Get(ctx, "k"); !ok {
			t.Fatalf("tier %s missing the entry", name)
		}
	}

	if err := multi.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for name, tier := range map[string]condcache.Cache{"fast": fast, "slow": slow} {
		if _, ok, _ := tier.Get(ctx, "k"); ok {
			t.Fatalf("tier %s kept a deleted entry", name)
		}
	}
}

// brokenCache errors on every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("broken")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("broken")
}
func (brokenCache) Delete(context.Context, string) error { return errors.New("broken") }

func TestDegradedTierSkippedOnRead(t *testing.T) {
	ctx := context.Background()
	healthy := condcache.NewMemoryCache()
	multi := New(brokenCache{}, healthy)

	if err := healthy.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := multi.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("broken first tier hid the value: ok=%v err=%v", ok, err)
	}
	if string(value) != "v" {
		t.Fatalf("got %q", value)
	}
}

func TestGetReportsErrorOnlyOnTotalMiss(t *testing.T) {
	multi := New(brokenCache{}, condcache.NewMemoryCache())
	if _, ok, err := multi.Get(context.Background(), "absent"); ok || err == nil {
		t.Fatalf("expected miss with the tier error surfaced, got ok=%v err=%v", ok, err)
	}
}

func TestLenUsesSlowestCountingTier(t *testing.T) {
	ctx := context.Background()
	fast := condcache.NewMemoryCache()
	slow := condcache.NewMemoryCache()
	multi := New(fast, slow)

	// Only the slow tier holds this entry, as after a fast-tier restart.
	if err := slow.Set(ctx, "survivor", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	n, err := multi.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}

func TestTierAccessor(t *testing.T) {
	fast := condcache.NewMemoryCache()
	slow := condcache.NewMemoryCache()
	multi := New(fast, slow)

	if multi.Tier(0) != condcache.Cache(fast) || multi.Tier(1) != condcache.Cache(slow) {
		t.Fatal("Tier returned the wrong backend")
	}
	if multi.Tier(2) != nil || multi.Tier(-1) != nil {
		t.Fatal("out-of-range Tier should be nil")
	}
}
