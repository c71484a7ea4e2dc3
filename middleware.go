package condcache

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/veltrio/condcache/metrics"
)

// XCache is the response header reporting whether the response body came
// from the output cache.
const XCache = "X-Cache"

// Middleware is the unified conditional-request and output-caching layer.
//
// For GET/HEAD requests it consults the output cache, buffers the downstream
// response on a miss, computes the ETag and Last-Modified validators,
// evaluates If-None-Match / If-Modified-Since, and answers 304 Not Modified
// or the full response with cache headers. Conditional evaluation always
// runs on the response being served, including cache hits, so a cached 200
// can still be answered with 304 and a stale client validator can never
// produce a stale 200 after invalidation.
//
// Unsafe methods are buffered so that write-triggered invalidation completes
// before the response is released to the caller.
type Middleware struct {
	cache       Cache
	policies    *PolicyTable
	keyer       *Keyer
	invalidator *Invalidator
	callerID    func(*http.Request) string
	modTime     func(resource string) (time.Time, bool)
	collector   metrics.Collector
	clock       func() time.Time
	started     time.Time

	hits        atomic.Uint64
	misses      atomic.Uint64
	notModifies atomic.Uint64
	bypasses    atomic.Uint64
}

// New creates a Middleware configured by opts.
func New(opts ...Option) (*Middleware, error) {
	m := &Middleware{
		policies:  NewPolicyTable(Policy{}),
		keyer:     &Keyer{},
		collector: metrics.NoOpCollector{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.started = m.clock()
	return m, nil
}

// Store returns the configured output-cache store, or nil.
func (m *Middleware) Store() Cache {
	return m.cache
}

// Wrap returns a handler that applies caching and conditional-request
// semantics around next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := m.clock()

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			status := m.serveWrite(w, r, next)
			m.bypasses.Add(1)
			m.collector.RecordRequest(r.Method, metrics.StatusBypass, status, m.clock().Sub(start))
			return
		}

		status, cacheStatus := m.serveRead(w, r, next)
		m.collector.RecordRequest(r.Method, cacheStatus, status, m.clock().Sub(start))
	})
}

// serveWrite buffers an unsafe-method response, runs invalidation on
// success, and only then releases the buffered response.
func (m *Middleware) serveWrite(w http.ResponseWriter, r *http.Request, next http.Handler) int {
	if m.invalidator == nil {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		return sw.status
	}

	rec := newRecorder()
	next.ServeHTTP(rec, r)

	m.invalidator.invalidateForWrite(r, rec.status, rec.header.Get("Location"))

	if r.Context().Err() != nil {
		return rec.status
	}
	if err := rec.replay(w); err != nil {
		GetLogger().Debug("failed to write buffered response", "error", err)
	}
	return rec.status
}

// serveRead handles GET/HEAD. It returns the emitted status code and the
// cache status label for metrics.
func (m *Middleware) serveRead(w http.ResponseWriter, r *http.Request, next http.Handler) (int, string) {
	ctx := r.Context()
	pol := m.policies.For(r.URL.Path)
	resource := pol.KeyPrefix
	if resource == "" {
		resource = r.URL.Path
	}

	var caller string
	if m.callerID != nil {
		caller = m.callerID(r)
	}
	key := m.keyer.ForRequest(r, pol, caller)

	useStore := m.cache != nil && !pol.NoStore && pol.MaxAge > 0

	var entry *Entry
	if useStore {
		entry = m.lookup(ctx, key)
	}
	cacheStatus := metrics.StatusMiss
	if entry != nil {
		cacheStatus = metrics.StatusHit
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}

	if entry == nil {
		rec := newRecorder()
		next.ServeHTTP(rec, r)

		// Cancellation mid-generation: the client is gone, do not touch
		// the response or the cache.
		if ctx.Err() != nil {
			return rec.status, metrics.StatusBypass
		}

		// Non-200 responses bypass conditional evaluation and never
		// receive cache headers.
		if rec.status != http.StatusOK {
			if err := rec.replay(w); err != nil {
				GetLogger().Debug("failed to write buffered response", "error", err)
			}
			return rec.status, metrics.StatusBypass
		}

		entry = &Entry{
			StatusCode: rec.status,
			Header:     rec.header,
			Body:       rec.body.Bytes(),
			CreatedAt:  m.clock(),
			TTL:        pol.MaxAge,
		}
		if useStore {
			m.store(ctx, key, resource, entry)
		}
	}

	etag := ETagFor(entry.Body)
	lastModified := m.lastModified(resource, entry)

	if notModified(r, etag, lastModified) {
		m.notModifies.Add(1)
		writeNotModified(w, etag, lastModified, cacheStatus)
		return http.StatusNotModified, metrics.StatusNotModified
	}

	copyHeader(w.Header(), entry.Header)
	m.setCacheHeaders(w.Header(), etag, lastModified, pol)
	if cacheStatus == metrics.StatusHit {
		w.Header().Set("Age", fmt.Sprintf("%d", int(entry.Age(m.clock())/time.Second)))
		w.Header().Set(XCache, "HIT")
	} else {
		w.Header().Set(XCache, "MISS")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if _, err := w.Write(entry.Body); err != nil {
			GetLogger().Debug("failed to write response body", "error", err)
		}
		m.collector.RecordResponseSize(cacheStatus, int64(len(entry.Body)))
	}
	return http.StatusOK, cacheStatus
}

// lookup fetches and decodes a stored entry. Every failure is fail-open:
// log and treat as a miss.
func (m *Middleware) lookup(ctx context.Context, key string) *Entry {
	data, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		GetLogger().Warn("output cache get failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	entry, err := DecodeEntry(data)
	if err != nil {
		GetLogger().Warn("dropping undecodable cache entry", "key", key, "error", err)
		_ = m.cache.Delete(ctx, key) //nolint:errcheck // best effort
		return nil
	}
	if entry.Expired(m.clock()) {
		_ = m.cache.Delete(ctx, key) //nolint:errcheck // best effort
		return nil
	}
	return entry
}

// store encodes and saves an entry, registering its key for invalidation.
// Failures are fail-open.
func (m *Middleware) store(ctx context.Context, key, resource string, entry *Entry) {
	data, err := entry.Encode()
	if err != nil {
		GetLogger().Warn("skipping uncacheable response", "key", key, "error", err)
		return
	}
	if err := m.cache.Set(ctx, key, data, entry.TTL); err != nil {
		GetLogger().Warn("output cache set failed", "key", key, "error", err)
		return
	}
	if m.invalidator != nil {
		m.invalidator.track(resource, key)
	}
}

// lastModified resolves the Last-Modified value for a response: an explicit
// modification clock when available, the invalidator's resource clock
// otherwise, falling back to the entry creation time.
func (m *Middleware) lastModified(resource string, entry *Entry) time.Time {
	if m.modTime != nil {
		if t, ok := m.modTime(resource); ok {
			return t
		}
	}
	if m.invalidator != nil {
		if t, ok := m.invalidator.ModTime(resource); ok {
			return t
		}
	}
	return entry.CreatedAt
}

func (m *Middleware) setCacheHeaders(h http.Header, etag string, lastModified time.Time, pol Policy) {
	h.Set("ETag", etag)
	h.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	if h.Get("Cache-Control") == "" {
		maxAge := pol.MaxAge
		if maxAge <= 0 {
			maxAge = DefaultMaxAge
		}
		h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge/time.Second)))
	}
	if len(pol.Vary) > 0 {
		h.Set("Vary", strings.Join(pol.Vary, ", "))
	}
}

func writeNotModified(w http.ResponseWriter, etag string, lastModified time.Time, cacheStatus string) {
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	h.Del("Content-Type")
	h.Set("Content-Length", "0")
	if cacheStatus == metrics.StatusHit {
		h.Set(XCache, "HIT")
	} else {
		h.Set(XCache, "MISS")
	}
	w.WriteHeader(http.StatusNotModified)
}

// Stats is a point-in-time snapshot of middleware and store counters,
// consumed by the management API.
type Stats struct {
	Hits           uint64
	Misses         uint64
	NotModified    uint64
	Bypass         uint64
	HitRatio       float64
	KeyCount       int64
	StoreConnected bool
	Uptime         time.Duration
}

// Stats returns current counters. KeyCount and StoreConnected are filled in
// when the store implements Counter and Pinger respectively.
func (m *Middleware) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		NotModified: m.notModifies.Load(),
		Bypass:      m.bypasses.Load(),
		Uptime:      m.clock().Sub(m.started),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	if counter, ok := m.cache.(Counter); ok {
		if n, err := counter.Len(ctx); err == nil {
			s.KeyCount = n
		}
	}
	if pinger, ok := m.cache.(Pinger); ok {
		s.StoreConnected = pinger.Ping(ctx) == nil
	} else {
		s.StoreConnected = m.cache != nil
	}
	return s
}
