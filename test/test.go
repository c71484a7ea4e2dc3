// Package test provides a conformance suite exercised against every
// condcache.Cache backend.
package test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/veltrio/condcache"
)

// Cache exercises a condcache.Cache implementation.
func Cache(t *testing.T, cache condcache.Cache) {
	t.Helper()
	ctx := context.Background()
	key := "testKey"

	_, ok, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("retrieved key before adding it")
	}

	val := []byte("some bytes")
	if err := cache.Set(ctx, key, val, time.Minute); err != nil {
		t.Fatalf("error setting key: %v", err)
	}

	retVal, ok, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if !ok {
		t.Fatal("could not retrieve an element we just added")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatal("retrieved a different value than what we put in")
	}

	if err := cache.Set(ctx, key, []byte("overwritten"), time.Minute); err != nil {
		t.Fatalf("error overwriting key: %v", err)
	}
	retVal, ok, err = cache.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("error getting overwritten key: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(retVal, []byte("overwritten")) {
		t.Fatal("overwrite did not take effect")
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("error deleting key: %v", err)
	}

	_, ok, err = cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("deleted key still present")
	}
}

// Clearer exercises the optional Clear capability.
func Clearer(t *testing.T, cache condcache.Cache) {
	t.Helper()
	clearer, ok := cache.(condcache.Clearer)
	if !ok {
		t.Fatal("cache does not implement condcache.Clearer")
	}
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := cache.Set(ctx, key, []byte(key), time.Minute); err != nil {
			t.Fatalf("error setting key %q: %v", key, err)
		}
	}
	if err := clearer.Clear(ctx); err != nil {
		t.Fatalf("error clearing cache: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		_, ok, err := cache.Get(ctx, key)
		if err != nil {
			t.Fatalf("error getting key %q: %v", key, err)
		}
		if ok {
			t.Fatalf("key %q survived Clear", key)
		}
	}
}

// Counter exercises the optional Len capability.
func Counter(t *testing.T, cache condcache.Cache) {
	t.Helper()
	counter, ok := cache.(condcache.Counter)
	if !ok {
		t.Fatal("cache does not implement condcache.Counter")
	}
	ctx := context.Background()

	before, err := counter.Len(ctx)
	if err != nil {
		t.Fatalf("error counting entries: %v", err)
	}
	if err := cache.Set(ctx, "countKey", []byte("v"), time.Minute); err != nil {
		t.Fatalf("error setting key: %v", err)
	}
	after, err := counter.Len(ctx)
	if err != nil {
		t.Fatalf("error counting entries: %v", err)
	}
	if after != before+1 {
		t.Fatalf("expected count %d, got %d", before+1, after)
	}
	if err := cache.Delete(ctx, "countKey"); err != nil {
		t.Fatalf("error deleting key: %v", err)
	}
}
