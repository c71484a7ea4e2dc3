package condcache

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Invalidator evicts cached responses when the resource they were derived
// from is mutated, and tracks per-resource modification times that feed the
// Last-Modified response header.
//
// Cache backends cannot generally enumerate keys by prefix, so the
// invalidator keeps its own index of resource -> concrete cache keys, fed by
// the middleware whenever an entry is stored. The index is process-local;
// each API instance evicts from the store it writes through.
type Invalidator struct {
	cache Cache

	mu       sync.Mutex
	keys     map[string]map[string]struct{}
	modified map[string]time.Time
	clock    func() time.Time
}

// NewInvalidator returns an Invalidator that evicts from cache.
func NewInvalidator(cache Cache) *Invalidator {
	return &Invalidator{
		cache:    cache,
		keys:     map[string]map[string]struct{}{},
		modified: map[string]time.Time{},
		clock:    time.Now,
	}
}

// track records that key holds a response derived from resource.
func (i *Invalidator) track(resource, key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	set, ok := i.keys[resource]
	if !ok {
		set = map[string]struct{}{}
		i.keys[resource] = set
	}
	set[key] = struct{}{}
}

// ModTime returns the last recorded modification time for resource.
func (i *Invalidator) ModTime(resource string) (time.Time, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	t, ok := i.modified[resource]
	return t, ok
}

// Invalidate synchronously evicts every tracked key for resource and bumps
// its modification time. It must complete before the mutating operation's
// result is returned to the caller, so a read issued immediately after a
// write never observes the evicted entries.
func (i *Invalidator) Invalidate(ctx context.Context, resource string) error {
	i.mu.Lock()
	keys := make([]string, 0, len(i.keys[resource]))
	for key := range i.keys[resource] {
		keys = append(keys, key)
	}
	delete(i.keys, resource)
	i.modified[resource] = i.clock()
	i.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		if err := i.cache.Delete(ctx, key); err != nil {
			GetLogger().Warn("failed to evict cache entry", "key", key, "resource", resource, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// InvalidatePath evicts every tracked resource related to an entity path:
// the path itself, its collection ancestors, and any tracked descendants.
// A POST to /api/people evicts the /api/people list and every /api/people/*
// item; a DELETE of /api/people/5 evicts the item and the list.
func (i *Invalidator) InvalidatePath(ctx context.Context, path string) error {
	i.mu.Lock()
	var resources []string
	for resource := range i.keys {
		if pathsRelated(resource, path) {
			resources = append(resources, resource)
		}
	}
	i.mu.Unlock()

	// Bump the path's own clock even when nothing was cached yet, so a
	// later GET reports a fresh Last-Modified.
	i.mu.Lock()
	i.modified[path] = i.clock()
	i.mu.Unlock()

	var firstErr error
	for _, resource := range resources {
		if err := i.Invalidate(ctx, resource); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pathsRelated reports whether a tracked resource is affected by a mutation
// of path: equality, ancestor or descendant.
func pathsRelated(resource, path string) bool {
	if resource == path {
		return true
	}
	return strings.HasPrefix(path, resource+"/") || strings.HasPrefix(resource, path+"/")
}

// invalidateForWrite handles eviction after a successful unsafe-method
// response. Besides the request path it honors the Location header for
// same-origin created resources, per RFC 9111 Section 4.4.
func (i *Invalidator) invalidateForWrite(r *http.Request, status int, location string) {
	if status >= http.StatusBadRequest {
		return
	}
	ctx := r.Context()
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	if err := i.InvalidatePath(ctx, r.URL.Path); err != nil {
		GetLogger().Warn("write invalidation incomplete", "path", r.URL.Path, "error", err)
	}

	if location == "" {
		return
	}
	target, err := r.URL.Parse(location)
	if err != nil {
		GetLogger().Debug("unparseable Location header, skipping invalidation", "location", location)
		return
	}
	if !sameOrigin(r.URL, target) {
		GetLogger().Debug("skipping cross-origin invalidation", "location", location)
		return
	}
	if target.Path != r.URL.Path {
		if err := i.InvalidatePath(ctx, target.Path); err != nil {
			GetLogger().Warn("location invalidation incomplete", "path", target.Path, "error", err)
		}
	}
}

// sameOrigin reports whether two URLs share scheme and host. Relative
// Location values resolve against the request URL and therefore match.
func sameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}
