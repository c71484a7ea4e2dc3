package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/veltrio/condcache/metrics"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewCollectorWithConfig(CollectorConfig{Registry: registry}), registry
}

func TestRecordRequest(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordRequest("GET", metrics.StatusHit, 200, 2*time.Millisecond)
	collector.RecordRequest("GET", metrics.StatusHit, 200, 3*time.Millisecond)
	collector.RecordRequest("GET", metrics.StatusNotModified, 304, time.Millisecond)

	if got := testutil.ToFloat64(collector.requests.WithLabelValues("GET", "hit", "200")); got != 2 {
		t.Fatalf("hit counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.requests.WithLabelValues("GET", "not_modified", "304")); got != 1 {
		t.Fatalf("not_modified counter = %v, want 1", got)
	}
}

func TestRecordCacheOperation(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordCacheOperation("get", "redis", "hit", time.Millisecond)
	collector.RecordCacheOperation("set", "redis", "error", time.Millisecond)

	if got := testutil.ToFloat64(collector.cacheOps.WithLabelValues("get", "redis", "hit")); got != 1 {
		t.Fatalf("get counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.cacheOps.WithLabelValues("set", "redis", "error")); got != 1 {
		t.Fatalf("set counter = %v, want 1", got)
	}
}

func TestRecordResponseSizeAndEntries(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordResponseSize(metrics.StatusMiss, 1024)
	collector.RecordResponseSize(metrics.StatusMiss, 1024)
	collector.RecordEntries("memory", 7)
	collector.RecordEntries("memory", 5) // gauge, last write wins

	if got := testutil.ToFloat64(collector.responseSize.WithLabelValues("miss")); got != 2048 {
		t.Fatalf("response size = %v, want 2048", got)
	}
	if got := testutil.ToFloat64(collector.entries.WithLabelValues("memory")); got != 5 {
		t.Fatalf("entries gauge = %v, want 5", got)
	}
}

func TestCustomNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollectorWithConfig(CollectorConfig{
		Registry:  registry,
		Namespace: "myapp",
		Subsystem: "cache",
	})
	collector.RecordRequest("GET", metrics.StatusMiss, 200, time.Millisecond)

	n, err := testutil.GatherAndCount(registry, "myapp_cache_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Fatalf("found %d series, want 1", n)
	}
}
