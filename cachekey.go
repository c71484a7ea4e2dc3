package condcache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrSerialization indicates that request parameters could not be
// canonicalized for key generation. Callers should treat it as fail-open:
// skip caching for the request, never fail the request itself.
var ErrSerialization = errors.New("condcache: parameters are not serializable")

// DefaultHashLength is the number of URL-safe base64 characters of the
// parameter digest kept in a cache key. At 16 characters (~96 bits) the
// collision probability is negligible for realistic key populations, but
// the length is configurable for deployments that want more margin.
const DefaultHashLength = 16

// Keyer derives deterministic cache keys from a request's logical identity:
// a type or route prefix, a canonicalized parameter payload and, when
// caller-scoping is enabled, the authenticated caller.
//
// Two logically identical requests always produce the same key; any
// difference in parameters produces a different key with overwhelming
// probability.
type Keyer struct {
	// HashLength is the number of digest characters appended to the key.
	// Zero means DefaultHashLength.
	HashLength int
}

func (k *Keyer) hashLen() int {
	if k == nil || k.HashLength <= 0 {
		return DefaultHashLength
	}
	if k.HashLength > 43 { // full SHA-256 in raw base64
		return 43
	}
	return k.HashLength
}

// digest hashes the canonical payload and returns a fixed-length URL-safe
// prefix of the encoded digest.
func (k *Keyer) digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.RawURLEncoding.EncodeToString(sum[:])[:k.hashLen()]
}

// ForQuery derives a cache key for a named query and its parameter object.
// callerID scopes the key to the authenticated caller; pass "" for shared
// keys. A nil params value is canonicalized to the empty object, so it keys
// identically to an explicit empty parameter struct.
func (k *Keyer) ForQuery(queryType string, params any, callerID string) (string, error) {
	payload, err := canonicalParams(params)
	if err != nil {
		return "", err
	}

	parts := []string{queryType}
	if callerID != "" {
		parts = append(parts, "user:"+callerID)
	}
	parts = append(parts, k.digest(payload))
	return strings.Join(parts, ":"), nil
}

// ForRequest derives the fingerprint of an HTTP request under a route
// policy. The visible prefix is the policy's key prefix (or the request
// path, method-qualified for HEAD); the digest covers the canonicalized
// query string and the values of the policy's Vary headers.
func (k *Keyer) ForRequest(r *http.Request, pol Policy, callerID string) string {
	prefix := pol.KeyPrefix
	if prefix == "" {
		prefix = r.URL.Path
	}
	if r.Method == http.MethodHead {
		prefix = r.Method + " " + prefix
	}

	parts := []string{prefix}
	if pol.PerCaller && callerID != "" {
		parts = append(parts, "user:"+callerID)
	}
	parts = append(parts, k.digest([]byte(canonicalRequestPayload(r, pol.Vary))))
	return strings.Join(parts, ":")
}

// canonicalParams serializes params to a canonical JSON form with stable
// field ordering. encoding/json already sorts map keys and emits struct
// fields in declaration order, so its output is deterministic for a given
// value.
func canonicalParams(params any) ([]byte, error) {
	if params == nil {
		return []byte("{}"), nil
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return payload, nil
}

// canonicalRequestPayload flattens query parameters and varied header values
// into a stable string. Query keys and repeated values are sorted so that
// semantically equal requests with different parameter ordering fingerprint
// identically.
func canonicalRequestPayload(r *http.Request, vary []string) string {
	query := r.URL.Query()
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(v)
			b.WriteByte('&')
		}
	}

	for _, header := range vary {
		b.WriteString("|vary:")
		b.WriteString(http.CanonicalHeaderKey(strings.TrimSpace(header)))
		b.WriteByte(':')
		b.WriteString(r.Header.Get(header))
	}
	return b.String()
}
