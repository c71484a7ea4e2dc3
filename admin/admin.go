// Package admin exposes the cache management HTTP API: statistics, health,
// configuration introspection and administrative eviction.
//
// Unlike the request-path middleware, which fails open, this surface reports
// store failures explicitly: a broken backend yields 500/503 with a
// structured error body, never a silent success.
package admin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veltrio/condcache"
)

// Identity describes the authenticated caller of a management endpoint.
type Identity struct {
	User  string
	Admin bool
}

// AuthFunc resolves the caller identity of a request. Returning ok=false
// marks the request as unauthenticated.
type AuthFunc func(*http.Request) (id Identity, ok bool)

// Region describes a named cache region for configuration reporting and
// region-scoped clears. Keys belong to a region when they start with its
// name.
type Region struct {
	Name     string        `json:"name"`
	TTL      time.Duration `json:"ttl"`
	Priority int           `json:"priority"`
}

// Config is the static cache configuration echoed by GET /config.
type Config struct {
	DefaultTTL        time.Duration `json:"defaultTTL"`
	SlidingExpiration bool          `json:"slidingExpiration"`
	EnableCompression bool          `json:"enableCompression"`
	MaxMemoryMB       int           `json:"maxMemoryMB"`
	Regions           []Region      `json:"regions"`
}

// Handler serves the management API.
type Handler struct {
	store      condcache.Cache
	middleware *condcache.Middleware
	local      condcache.Cache // optional in-memory tier for health reporting
	config     Config
	auth       AuthFunc
}

// Options configures a Handler.
type Options struct {
	// Store is the output-cache store under management. Required.
	Store condcache.Cache

	// Middleware supplies hit/miss statistics. Required.
	Middleware *condcache.Middleware

	// Local is the in-memory tier reported by /health. Optional; when nil
	// the health report marks the in-memory section unavailable.
	Local condcache.Cache

	// Config is echoed by GET /config.
	Config Config

	// Auth resolves caller identities. Required: without it every guarded
	// endpoint answers 401.
	Auth AuthFunc
}

// New creates a management API handler.
func New(opts Options) *Handler {
	return &Handler{
		store:      opts.Store,
		middleware: opts.Middleware,
		local:      opts.Local,
		config:     opts.Config,
		auth:       opts.Auth,
	}
}

// Routes returns the chi router for mounting, typically at /api/cache.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.requireUser(h.stats))
	r.Post("/clear", h.requireAdmin(h.clear))
	r.Delete("/key/{key}", h.requireAdmin(h.deleteKey))
	r.Get("/health", h.health) // anonymous by design
	r.Get("/config", h.requireAdmin(h.getConfig))
	return r
}

func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		if _, ok := h.auth(r); !ok {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		next(w, r)
	}
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		id, ok := h.auth(r)
		if !ok || !id.Admin {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		next(w, r)
	}
}

type statsResponse struct {
	HitRatio       float64 `json:"hitRatio"`
	TotalHits      uint64  `json:"totalHits"`
	TotalMisses    uint64  `json:"totalMisses"`
	NotModified    uint64  `json:"notModified"`
	MemoryUsageMB  float64 `json:"memoryUsageMB"`
	KeyCount       int64   `json:"keyCount"`
	RedisConnected bool    `json:"redisConnected"`
	UptimeSeconds  int64   `json:"uptime"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.pingStore(ctx); err != nil && !errors.Is(err, errNoPinger) {
		writeError(w, r, http.StatusServiceUnavailable, "Cache store unavailable", err.Error())
		return
	}

	s := h.middleware.Stats(ctx)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, statsResponse{
		HitRatio:       s.HitRatio,
		TotalHits:      s.Hits,
		TotalMisses:    s.Misses,
		NotModified:    s.NotModified,
		MemoryUsageMB:  float64(mem.HeapAlloc) / (1 << 20),
		KeyCount:       s.KeyCount,
		RedisConnected: s.StoreConnected,
		UptimeSeconds:  int64(s.Uptime / time.Second),
	})
}

type clearRequest struct {
	Region  string `json:"region"`
	Pattern string `json:"pattern"`
}

type clearResponse struct {
	Cleared     bool   `json:"cleared"`
	KeysRemoved int    `json:"keysRemoved"`
	Message     string `json:"message"`
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req clearRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}

	switch {
	case req.Pattern != "":
		re, err := regexp.Compile(req.Pattern)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid pattern", err.Error())
			return
		}
		removed, err := h.clearMatching(ctx, func(key string) bool { return re.MatchString(key) })
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "Cache clear failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, clearResponse{Cleared: true, KeysRemoved: removed, Message: "cleared keys matching pattern"})

	case req.Region != "":
		removed, err := h.clearMatching(ctx, func(key string) bool { return strings.HasPrefix(key, req.Region) })
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "Cache clear failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, clearResponse{Cleared: true, KeysRemoved: removed, Message: "cleared region " + req.Region})

	default:
		clearer, ok := h.store.(condcache.Clearer)
		if !ok {
			writeError(w, r, http.StatusInternalServerError, "Cache clear failed", "store does not support clearing")
			return
		}
		removed := h.countKeys(ctx)
		if err := clearer.Clear(ctx); err != nil {
			writeError(w, r, http.StatusInternalServerError, "Cache clear failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, clearResponse{Cleared: true, KeysRemoved: removed, Message: "cache cleared"})
	}
}

// clearMatching deletes every key accepted by match. Requires an
// enumerable store.
func (h *Handler) clearMatching(ctx context.Context, match func(string) bool) (int, error) {
	enumerator, ok := h.store.(condcache.Enumerator)
	if !ok {
		return 0, errors.New("store does not support key enumeration")
	}
	keys, err := enumerator.Keys(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range keys {
		if !match(key) {
			continue
		}
		if err := h.store.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (h *Handler) countKeys(ctx context.Context) int {
	if counter, ok := h.store.(condcache.Counter); ok {
		if n, err := counter.Len(ctx); err == nil {
			return int(n)
		}
	}
	return 0
}

func (h *Handler) deleteKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid key", err.Error())
		return
	}

	_, ok, err := h.store.Get(ctx, key)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Cache lookup failed", err.Error())
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "Key not found", "")
		return
	}
	if err := h.store.Delete(ctx, key); err != nil {
		writeError(w, r, http.StatusInternalServerError, "Cache delete failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status string       `json:"status"`
	Redis  redisHealth  `json:"redis"`
	Memory memoryHealth `json:"inMemory"`
}

type redisHealth struct {
	Connected bool  `json:"connected"`
	LatencyMS int64 `json:"latencyMs"`
}

type memoryHealth struct {
	Available bool  `json:"available"`
	ItemCount int64 `json:"itemCount"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "healthy"}

	start := time.Now()
	err := h.pingStore(ctx)
	switch {
	case err == nil:
		resp.Redis = redisHealth{Connected: true, LatencyMS: time.Since(start).Milliseconds()}
	case errors.Is(err, errNoPinger):
		// Store has no remote server to check.
		resp.Redis = redisHealth{Connected: h.store != nil}
	default:
		resp.Redis = redisHealth{Connected: false}
		resp.Status = "degraded"
	}

	if h.local != nil {
		resp.Memory.Available = true
		if counter, ok := h.local.(condcache.Counter); ok {
			if n, err := counter.Len(ctx); err == nil {
				resp.Memory.ItemCount = n
			}
		}
	}

	status := http.StatusOK
	if resp.Status == "degraded" {
		if !resp.Memory.Available {
			resp.Status = "unhealthy"
			status = http.StatusInternalServerError
		} else {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config)
}

var errNoPinger = errors.New("admin: store is not pingable")

func (h *Handler) pingStore(ctx context.Context) error {
	pinger, ok := h.store.(condcache.Pinger)
	if !ok {
		return errNoPinger
	}
	return pinger.Ping(ctx)
}
