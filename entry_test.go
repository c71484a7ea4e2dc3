package condcache

import (
	"testing"
	"time"
)

func TestEntryExpiry(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	e := &Entry{CreatedAt: created, TTL: time.Minute}

	if e.Expired(created.Add(30 * time.Second)) {
		t.Fatal("entry expired inside its TTL")
	}
	if !e.Expired(created.Add(2 * time.Minute)) {
		t.Fatal("entry did not expire after its TTL")
	}

	// Zero TTL means no entry-level expiry.
	forever := &Entry{CreatedAt: created}
	if forever.Expired(created.Add(24 * time.Hour)) {
		t.Fatal("zero-TTL entry expired")
	}
}

func TestEntryAgeClamped(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	e := &Entry{CreatedAt: created}

	if got := e.Age(created.Add(90 * time.Second)); got != 90*time.Second {
		t.Fatalf("Age = %v, want 90s", got)
	}
	if got := e.Age(created.Add(-time.Second)); got != 0 {
		t.Fatalf("Age before creation = %v, want 0", got)
	}
}
