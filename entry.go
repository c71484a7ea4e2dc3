package condcache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Entry is the stored form of a cached response. Entries are only created
// for 200 responses to GET/HEAD requests.
type Entry struct {
	StatusCode int           `json:"status"`
	Header     http.Header   `json:"header"`
	Body       []byte        `json:"body"`
	CreatedAt  time.Time     `json:"created_at"`
	TTL        time.Duration `json:"ttl"`
}

// Expired reports whether the entry's freshness lifetime has elapsed at now.
// Expiry is enforced here on read so that backends without native TTL
// support never serve stale entries.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Age returns the entry age at now, clamped at zero.
func (e *Entry) Age(now time.Time) time.Duration {
	age := now.Sub(e.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}

// Encode serializes the entry for storage.
func (e *Entry) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("condcache: encoding cache entry: %w", err)
	}
	return data, nil
}

// DecodeEntry deserializes a stored entry.
func DecodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("condcache: decoding cache entry: %w", err)
	}
	return &e, nil
}
