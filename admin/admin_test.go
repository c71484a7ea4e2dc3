package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrio/condcache"
)

func testAuth(r *http.Request) (Identity, bool) {
	switch r.Header.Get("Authorization") {
	case "Bearer admin":
		return Identity{User: "admin", Admin: true}, true
	case "Bearer user":
		return Identity{User: "user"}, true
	default:
		return Identity{}, false
	}
}

func newTestHandler(t *testing.T, store condcache.Cache) (*Handler, condcache.Cache) {
	t.Helper()
	if store == nil {
		store = condcache.NewMemoryCache()
	}
	m, err := condcache.New(condcache.WithCache(store))
	require.NoError(t, err)
	return New(Options{
		Store:      store,
		Middleware: m,
		Local:      store,
		Config: Config{
			DefaultTTL: 5 * time.Minute,
			Regions: []Region{
				{Name: "/api/people", TTL: 5 * time.Minute, Priority: 1},
				{Name: "/api/roles", TTL: time.Hour, Priority: 2},
			},
		},
		Auth: testAuth,
	}), store
}

func do(h *Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	r := httptest.NewRequest(method, path, reader)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, r)
	return w
}

func TestStatsRequiresAuthentication(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	w := do(h, http.MethodGet, "/stats", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnauthorized, body.Status)
	assert.NotEmpty(t, body.TraceID)
	assert.False(t, body.Timestamp.IsZero())
}

func TestStats(t *testing.T) {
	h, store := newTestHandler(t, nil)
	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), time.Minute))

	w := do(h, http.MethodGet, "/stats", "user", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.KeyCount)
	assert.True(t, resp.RedisConnected)
	assert.Greater(t, resp.MemoryUsageMB, 0.0)
}

func TestClearRequiresAdmin(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/clear", "user", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/clear", "", "").Code)
}

func TestClearAll(t *testing.T) {
	h, store := newTestHandler(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("v"), time.Minute))

	w := do(h, http.MethodPost, "/clear", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp clearResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cleared)
	assert.Equal(t, 2, resp.KeysRemoved)

	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)
}

func TestClearByRegion(t *testing.T) {
	h, store := newTestHandler(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "/api/people:abc", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "/api/roles:def", []byte("v"), time.Minute))

	w := do(h, http.MethodPost, "/clear", "admin", `{"region":"/api/people"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp clearResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.KeysRemoved)

	_, ok, _ := store.Get(ctx, "/api/people:abc")
	assert.False(t, ok, "region member should be gone")
	_, ok, _ = store.Get(ctx, "/api/roles:def")
	assert.True(t, ok, "other region should survive")
}

func TestClearByPattern(t *testing.T) {
	h, store := newTestHandler(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "/api/people:user:alice:abc", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "/api/people:user:bob:def", []byte("v"), time.Minute))

	w := do(h, http.MethodPost, "/clear", "admin", `{"pattern":"user:alice"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp clearResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.KeysRemoved)

	_, ok, _ := store.Get(ctx, "/api/people:user:bob:def")
	assert.True(t, ok)
}

func TestClearInvalidPattern(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	w := do(h, http.MethodPost, "/clear", "admin", `{"pattern":"["}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearMalformedBody(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	w := do(h, http.MethodPost, "/clear", "admin", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteKey(t *testing.T) {
	h, store := newTestHandler(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "people:abc", []byte("v"), time.Minute))

	w := do(h, http.MethodDelete, "/key/missing", "admin", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodDelete, "/key/people:abc", "admin", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	_, ok, _ := store.Get(ctx, "people:abc")
	assert.False(t, ok)
}

// failingStore implements Pinger with an unreachable backend.
type failingStore struct {
	*condcache.MemoryCache
}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthHealthy(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	// Health is anonymous: no token.
	w := do(h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Redis.Connected)
	assert.True(t, resp.Memory.Available)
}

func TestHealthDegraded(t *testing.T) {
	store := failingStore{condcache.NewMemoryCache()}
	m, err := condcache.New(condcache.WithCache(store))
	require.NoError(t, err)
	h := New(Options{
		Store:      store,
		Middleware: m,
		Local:      condcache.NewMemoryCache(),
		Auth:       testAuth,
	})

	w := do(h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Redis.Connected)
	assert.True(t, resp.Memory.Available)
}

func TestHealthUnhealthy(t *testing.T) {
	store := failingStore{condcache.NewMemoryCache()}
	m, err := condcache.New(condcache.WithCache(store))
	require.NoError(t, err)
	h := New(Options{Store: store, Middleware: m, Auth: testAuth})

	w := do(h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestConfig(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/config", "user", "").Code)

	w := do(h, http.MethodGet, "/config", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5*time.Minute, resp.DefaultTTL)
	require.Len(t, resp.Regions, 2)
	assert.Equal(t, "/api/people", resp.Regions[0].Name)
}
