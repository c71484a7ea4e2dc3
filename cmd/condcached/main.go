// Command condcached runs a small CRUD API (people, roles, walls, windows)
// behind the condcache middleware, with the cache management API mounted at
// /api/cache and Prometheus metrics at /metrics.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veltrio/condcache"
	"github.com/veltrio/condcache/admin"
	promcollector "github.com/veltrio/condcache/metrics/prometheus"
	"github.com/veltrio/condcache/rediscache"
	"github.com/veltrio/condcache/wrapper/compresscache"
	"github.com/veltrio/condcache/wrapper/metricscache"
	"github.com/veltrio/condcache/wrapper/multicache"
	"github.com/veltrio/condcache/wrapper/resilientcache"
)

type config struct {
	Addr              string        `env:"ADDR" envDefault:":8080"`
	RedisAddr         string        `env:"REDIS_ADDR"`
	DefaultTTL        time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"5m"`
	EnableCompression bool          `env:"CACHE_COMPRESSION" envDefault:"false"`
	AdminToken        string        `env:"ADMIN_TOKEN" envDefault:"admin-secret"`
	UserToken         string        `env:"USER_TOKEN" envDefault:"user-secret"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	condcache.SetLogger(logger)

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Error("failed to parse configuration", "error", err)
		os.Exit(1)
	}

	collector := promcollector.NewCollector()

	local := condcache.NewMemoryCache()
	var store condcache.Cache = metricscache.New(local, "memory", collector)
	if cfg.RedisAddr != "" {
		redis, err := rediscache.New(context.Background(), rediscache.Config{Address: cfg.RedisAddr})
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		resilient := resilientcache.New(redis, resilientcache.Config{
			RetryPolicy:    resilientcache.RetryPolicyBuilder().Build(),
			CircuitBreaker: resilientcache.CircuitBreakerBuilder().Build(),
		})
		store = multicache.New(
			metricscache.New(local, "memory", collector),
			metricscache.New(resilient, "redis", collector),
		)
	}
	if cfg.EnableCompression {
		store = compresscache.New(store, compresscache.Snappy)
	}

	policies := condcache.NewPolicyTable(condcache.Policy{MaxAge: cfg.DefaultTTL}).
		Route("/api/roles", condcache.Policy{MaxAge: time.Hour, Vary: []string{"Accept", "Accept-Encoding"}}).
		Route("/api/walls", condcache.Policy{MaxAge: 10 * time.Minute}).
		Route("/api/windows", condcache.Policy{MaxAge: 10 * time.Minute})

	invalidator := condcache.NewInvalidator(store)

	cache, err := condcache.New(
		condcache.WithCache(store),
		condcache.WithPolicies(policies),
		condcache.WithInvalidator(invalidator),
		condcache.WithCollector(collector),
	)
	if err != nil {
		logger.Error("failed to build cache middleware", "error", err)
		os.Exit(1)
	}

	adminAPI := admin.New(admin.Options{
		Store:      store,
		Middleware: cache,
		Local:      local,
		Config: admin.Config{
			DefaultTTL:        cfg.DefaultTTL,
			EnableCompression: cfg.EnableCompression,
			Regions: []admin.Region{
				{Name: "/api/people", TTL: cfg.DefaultTTL, Priority: 1},
				{Name: "/api/roles", TTL: time.Hour, Priority: 2},
				{Name: "/api/walls", TTL: 10 * time.Minute, Priority: 3},
				{Name: "/api/windows", TTL: 10 * time.Minute, Priority: 3},
			},
		},
		Auth: tokenAuth(cfg.UserToken, cfg.AdminToken),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/cache", adminAPI.Routes())

	for _, name := range []string{"people", "roles", "walls", "windows"} {
		repo := newRepo()
		r.Mount("/api/"+name, cache.Wrap(repo.routes()))
	}

	logger.Info("listening", "addr", cfg.Addr)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// tokenAuth resolves identities from a bearer token. Demo-grade only.
func tokenAuth(userToken, adminToken string) admin.AuthFunc {
	return func(r *http.Request) (admin.Identity, bool) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		switch token {
		case adminToken:
			return admin.Identity{User: "admin", Admin: true}, true
		case userToken:
			return admin.Identity{User: "user"}, true
		default:
			return admin.Identity{}, false
		}
	}
}

// record is the demo entity shape shared by all four collections.
type record struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// repo is a mutex-guarded in-memory collection.
type repo struct {
	mu     sync.RWMutex
	items  map[int]record
	nextID int
}

func newRepo() *repo {
	return &repo{items: map[int]record{}, nextID: 1}
}

func (s *repo) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.list)
	r.Post("/", s.create)
	r.Get("/{id}", s.get)
	r.Put("/{id}", s.update)
	r.Delete("/{id}", s.remove)
	return r
}

func (s *repo) list(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	items := make([]record, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, items)
}

func (s *repo) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *repo) create(w http.ResponseWriter, r *http.Request) {
	var item record
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	item.ID = s.nextID
	s.nextID++
	s.items[item.ID] = item
	s.mu.Unlock()

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+strconv.Itoa(item.ID))
	writeJSON(w, http.StatusCreated, item)
}

func (s *repo) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var item record
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	_, ok := s.items[id]
	if ok {
		item.ID = id
		s.items[id] = item
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *repo) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	_, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Debug("failed to encode response", "error", err)
	}
}
