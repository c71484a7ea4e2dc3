package condcache

import (
	"strings"
	"time"
)

// DefaultMaxAge is the freshness lifetime applied when no route policy
// matches a request.
const DefaultMaxAge = 60 * time.Second

// Policy describes how responses for a logical route are cached.
// Policies are static configuration, authored at wiring time and read-only
// during request handling.
type Policy struct {
	// MaxAge is the entry TTL and the max-age advertised in Cache-Control.
	// Zero disables output caching for the route; conditional-request
	// handling still applies.
	MaxAge time.Duration

	// Vary lists request headers whose values participate in the cache key
	// and are advertised in the Vary response header.
	Vary []string

	// PerCaller scopes cache keys to the authenticated caller identity.
	PerCaller bool

	// KeyPrefix overrides the request path as the visible key prefix.
	KeyPrefix string

	// NoStore skips the output cache entirely for the route while keeping
	// ETag/304 handling.
	NoStore bool
}

type routePolicy struct {
	substring string
	policy    Policy
}

// PolicyTable maps URL path substrings to cache policies. The longest
// matching substring wins, so "/api/reports/daily" can carry a different
// TTL than the broader "/api/reports".
type PolicyTable struct {
	routes   []routePolicy
	fallback Policy
}

// NewPolicyTable returns a table that answers fallback for unmatched paths.
// A zero-valued fallback is normalized to DefaultMaxAge.
func NewPolicyTable(fallback Policy) *PolicyTable {
	if fallback.MaxAge == 0 && !fallback.NoStore {
		fallback.MaxAge = DefaultMaxAge
	}
	return &PolicyTable{fallback: fallback}
}

// Route registers a policy for paths containing substring and returns the
// table for chaining.
func (t *PolicyTable) Route(substring string, pol Policy) *PolicyTable {
	t.routes = append(t.routes, routePolicy{substring: substring, policy: pol})
	return t
}

// For returns the policy for path: the registered route with the longest
// matching substring, or the fallback.
func (t *PolicyTable) For(path string) Policy {
	best := -1
	pol := t.fallback
	for _, route := range t.routes {
		if len(route.substring) > best && strings.Contains(path, route.substring) {
			best = len(route.substring)
			pol = route.policy
		}
	}
	return pol
}
