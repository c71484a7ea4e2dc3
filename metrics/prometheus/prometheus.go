// Package prometheus provides a Prometheus implementation of the condcache
// metrics.Collector interface.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/veltrio/condcache/metrics"
)

// Collector implements metrics.Collector backed by Prometheus.
type Collector struct {
	requests     *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
	cacheOps     *prometheus.CounterVec
	cacheOpTime  *prometheus.HistogramVec
	responseSize *prometheus.CounterVec
	entries      *prometheus.GaugeVec
}

// CollectorConfig configures the Prometheus collector.
type CollectorConfig struct {
	// Registry to register metrics with. Nil uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace for all metrics (default "condcache").
	Namespace string

	// Subsystem for all metrics (optional).
	Subsystem string

	// ConstLabels added to every metric.
	ConstLabels prometheus.Labels
}

// NewCollector creates a collector registered with the default registry.
func NewCollector() *Collector {
	return NewCollectorWithConfig(CollectorConfig{})
}

// NewCollectorWithConfig creates a collector with custom configuration.
func NewCollectorWithConfig(config CollectorConfig) *Collector {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "condcache"
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "requests_total",
				Help:        "Requests through the caching middleware",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "cache_status", "code"},
		),
		requestTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "request_duration_seconds",
				Help:        "Duration of requests through the caching middleware",
				Buckets:     []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "cache_status"},
		),
		cacheOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_operations_total",
				Help:        "Store operations by backend and result",
				ConstLabels: config.ConstLabels,
			},
			[]string{"operation", "backend", "result"},
		),
		cacheOpTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_operation_duration_seconds",
				Help:        "Duration of store operations",
				Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
				ConstLabels: config.ConstLabels,
			},
			[]string{"operation", "backend"},
		),
		responseSize: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "response_bytes_total",
				Help:        "Bytes served by cache status",
				ConstLabels: config.ConstLabels,
			},
			[]string{"cache_status"},
		),
		entries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "entries",
				Help:        "Current entry count by backend",
				ConstLabels: config.ConstLabels,
			},
			[]string{"backend"},
		),
	}
}

// RecordRequest implements metrics.Collector.
func (c *Collector) RecordRequest(method, cacheStatus string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, cacheStatus, strconv.Itoa(statusCode)).Inc()
	c.requestTime.WithLabelValues(method, cacheStatus).Observe(duration.Seconds())
}

// RecordCacheOperation implements metrics.Collector.
func (c *Collector) RecordCacheOperation(operation, backend, result string, duration time.Duration) {
	c.cacheOps.WithLabelValues(operation, backend, result).Inc()
	c.cacheOpTime.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordResponseSize implements metrics.Collector.
func (c *Collector) RecordResponseSize(cacheStatus string, sizeBytes int64) {
	c.responseSize.WithLabelValues(cacheStatus).Add(float64(sizeBytes))
}

// RecordEntries implements metrics.Collector.
func (c *Collector) RecordEntries(backend string, count int64) {
	c.entries.WithLabelValues(backend).Set(float64(count))
}

var _ metrics.Collector = (*Collector)(nil)
