// Package metrics defines the collection interface used by condcache.
// Implementations exist for Prometheus; other monitoring systems can be
// plugged in without changing the core package.
package metrics

import "time"

// Cache status labels reported by the middleware.
const (
	StatusHit         = "hit"
	StatusMiss        = "miss"
	StatusNotModified = "not_modified"
	StatusBypass      = "bypass"
)

// Collector receives measurements from the middleware and cache backends.
type Collector interface {
	// RecordRequest records one request through the middleware.
	// cacheStatus is one of the Status* constants.
	RecordRequest(method, cacheStatus string, statusCode int, duration time.Duration)

	// RecordCacheOperation records a store operation (get, set, delete)
	// against a backend, with its result ("hit", "miss", "success", "error").
	RecordCacheOperation(operation, backend, result string, duration time.Duration)

	// RecordResponseSize records the body size of a served response.
	RecordResponseSize(cacheStatus string, sizeBytes int64)

	// RecordEntries records the current entry count of a backend.
	RecordEntries(backend string, count int64)
}

// NoOpCollector implements Collector with no-op operations. It is the
// default when metrics are not wired, so the hot path carries no overhead.
type NoOpCollector struct{}

// RecordRequest does nothing.
func (NoOpCollector) RecordRequest(method, cacheStatus string, statusCode int, duration time.Duration) {
}

// RecordCacheOperation does nothing.
func (NoOpCollector) RecordCacheOperation(operation, backend, result string, duration time.Duration) {
}

// RecordResponseSize does nothing.
func (NoOpCollector) RecordResponseSize(cacheStatus string, sizeBytes int64) {}

// RecordEntries does nothing.
func (NoOpCollector) RecordEntries(backend string, count int64) {}

var _ Collector = NoOpCollector{}
