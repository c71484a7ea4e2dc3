package condcache

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"time"
)

// StatusTracker heuristics. A request is a "likely hit" when the same
// path+query was seen inside the recency window AND the response was
// produced under the latency threshold.
const (
	statusRecencyWindow  = 30 * time.Second
	statusFastThreshold  = 50 * time.Millisecond
	statusMaxEntries     = 100
	statusPruneThreshold = 5 * time.Minute
)

// StatusTracker labels GET responses with an X-Cache: HIT/MISS header based
// on request timing. It is a best-effort observability signal, NOT ground
// truth: it has no view into any cache store and can mislabel fast misses
// as hits. Prefer Middleware, which reports real store state, whenever an
// output cache is wired; the tracker exists for pipelines that only do
// conditional-request handling.
//
// The tracker is an injected component rather than package state so tests
// and independent pipelines do not share timing history.
type StatusTracker struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	clock func() time.Time
}

// NewStatusTracker returns an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		seen:  map[string]time.Time{},
		clock: time.Now,
	}
}

// observe records a sighting of key and reports whether it was seen within
// the recency window. Pruning runs inline when the map outgrows its bound;
// the critical section stays small (lookup + insert + occasional sweep).
func (t *StatusTracker) observe(key string) bool {
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.seen[key]
	recent := ok && now.Sub(last) <= statusRecencyWindow
	t.seen[key] = now

	if len(t.seen) > statusMaxEntries {
		for k, ts := range t.seen {
			if now.Sub(ts) > statusPruneThreshold {
				delete(t.seen, k)
			}
		}
	}
	return recent
}

// Middleware returns a handler that sets the heuristic X-Cache header on
// GET responses. The label is decided when the downstream handler writes
// its status line, so elapsed time is measured up to first byte.
func (t *StatusTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		likely := t.observe(r.URL.Path + "?" + r.URL.RawQuery)
		start := t.clock()

		next.ServeHTTP(&statusLabelWriter{
			ResponseWriter: w,
			decide: func() string {
				if likely && t.clock().Sub(start) < statusFastThreshold {
					return "HIT"
				}
				return "MISS"
			},
		}, r)
	})
}

// statusLabelWriter injects the X-Cache header just before the status line
// is committed.
type statusLabelWriter struct {
	http.ResponseWriter
	decide  func() string
	labeled bool
}

func (w *statusLabelWriter) WriteHeader(status int) {
	w.label()
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusLabelWriter) Write(p []byte) (int, error) {
	w.label()
	return w.ResponseWriter.Write(p)
}

// Flush labels and forwards, keeping streaming handlers working behind the
// tracker.
func (w *statusLabelWriter) Flush() {
	w.label()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusLabelWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (w *statusLabelWriter) label() {
	if w.labeled {
		return
	}
	w.labeled = true
	if w.Header().Get(XCache) == "" {
		w.Header().Set(XCache, w.decide())
	}
}
