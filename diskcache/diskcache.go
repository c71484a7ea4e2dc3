// Package diskcache provides an implementation of condcache.Cache that uses
// the diskv package to supplement an in-memory map with persistent storage.
//
// Cache keys are hashed to produce safe filenames; expiry is enforced by the
// condcache entry codec on read.
package diskcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/peterbourgon/diskv"

	"github.com/veltrio/condcache"
)

// Cache is an implementation of condcache.Cache that supplements the
// in-memory map with persistent storage.
type Cache struct {
	d *diskv.Diskv
}

// New returns a new Cache that will store files in basePath.
func New(basePath string) *Cache {
	return NewWithDiskv(diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: 100 * 1024 * 1024, // 100MB memory overlay
	}))
}

// NewWithDiskv returns a new Cache using the provided Diskv as underlying
// storage.
func NewWithDiskv(d *diskv.Diskv) *Cache {
	return &Cache{d: d}
}

// keyToFilename derives a filesystem-safe name from a cache key.
func keyToFilename(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get returns the stored bytes for key if present.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := c.d.Read(keyToFilename(key))
	if err != nil {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value against key. ttl is ignored; expiry is enforced on read.
func (c *Cache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return c.d.Write(keyToFilename(key), value)
}

// Delete removes the entry with key.
func (c *Cache) Delete(_ context.Context, key string) error {
	return c.d.Erase(keyToFilename(key))
}

// Clear removes all entries.
func (c *Cache) Clear(_ context.Context) error {
	return c.d.EraseAll()
}

var (
	_ condcache.Cache   = (*Cache)(nil)
	_ condcache.Clearer = (*Cache)(nil)
)
