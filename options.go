package condcache

import (
	"fmt"
	"net/http"
	"time"

	"github.com/veltrio/condcache/metrics"
)

// Option configures a Middleware. Use the With* functions to create Options.
type Option func(*Middleware) error

// WithCache sets the output-cache store. Without a store the middleware
// still performs conditional-request handling, it just never serves or
// stores whole responses.
func WithCache(cache Cache) Option {
	return func(m *Middleware) error {
		m.cache = cache
		return nil
	}
}

// WithPolicies sets the per-route policy table.
// Default: a table answering DefaultMaxAge for every path.
func WithPolicies(table *PolicyTable) Option {
	return func(m *Middleware) error {
		if table == nil {
			return fmt.Errorf("condcache: policy table cannot be nil")
		}
		m.policies = table
		return nil
	}
}

// WithKeyer sets the cache key generator.
// Default: a Keyer with DefaultHashLength.
func WithKeyer(keyer *Keyer) Option {
	return func(m *Middleware) error {
		if keyer == nil {
			return fmt.Errorf("condcache: keyer cannot be nil")
		}
		m.keyer = keyer
		return nil
	}
}

// WithInvalidator wires write-triggered eviction and resource modification
// times. Stored keys are tracked per resource; successful POST/PUT/PATCH/
// DELETE responses evict affected entries before the response returns, and
// the invalidator's modification clock supplies Last-Modified.
func WithInvalidator(inv *Invalidator) Option {
	return func(m *Middleware) error {
		if inv == nil {
			return fmt.Errorf("condcache: invalidator cannot be nil")
		}
		m.invalidator = inv
		return nil
	}
}

// WithCallerID sets the function that extracts the authenticated caller
// identity from a request, used by policies with PerCaller enabled.
// Returning "" marks the request as unauthenticated.
func WithCallerID(fn func(*http.Request) string) Option {
	return func(m *Middleware) error {
		m.callerID = fn
		return nil
	}
}

// WithModTime sets the resource modification clock used for Last-Modified.
// When an Invalidator is wired it already provides this; the option exists
// for data layers that expose real per-resource modification timestamps.
func WithModTime(fn func(resource string) (time.Time, bool)) Option {
	return func(m *Middleware) error {
		m.modTime = fn
		return nil
	}
}

// WithCollector sets the metrics collector.
// Default: metrics.NoOpCollector.
func WithCollector(collector metrics.Collector) Option {
	return func(m *Middleware) error {
		if collector == nil {
			return fmt.Errorf("condcache: collector cannot be nil")
		}
		m.collector = collector
		return nil
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Middleware) error {
		m.clock = clock
		return nil
	}
}
