// Package leveldbcache provides an implementation of condcache.Cache that
// uses github.com/syndtr/goleveldb/leveldb for persistent local storage.
//
// LevelDB has no native expiry; TTLs are enforced by the condcache entry
// codec on read.
package leveldbcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/veltrio/condcache"
)

// Cache is an implementation of condcache.Cache with leveldb storage.
type Cache struct {
	db *leveldb.DB
}

// New returns a new Cache storing its database at path.
func New(path string) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldbcache: open %q: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// NewWithDB returns a new Cache using the provided leveldb database.
func NewWithDB(db *leveldb.DB) *Cache {
	return &Cache{db: db}
}

// Get returns the stored bytes for key if present.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := c.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("leveldbcache: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value against key. ttl is ignored; expiry is enforced on read.
func (c *Cache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if err := c.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("leveldbcache: set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry with key.
func (c *Cache) Delete(_ context.Context, key string) error {
	if err := c.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldbcache: delete %q: %w", key, err)
	}
	return nil
}

// Keys returns all stored keys.
func (c *Cache) Keys(_ context.Context) ([]string, error) {
	var keys []string
	iter := c.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldbcache: iterate: %w", err)
	}
	return keys, nil
}

// Len returns the number of stored entries.
func (c *Cache) Len(ctx context.Context) (int64, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// Clear removes all entries.
func (c *Cache) Clear(_ context.Context) error {
	batch := new(leveldb.Batch)
	iter := c.db.NewIterator(&util.Range{}, nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldbcache: clear iterate: %w", err)
	}
	if err := c.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldbcache: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

var (
	_ condcache.Cache      = (*Cache)(nil)
	_ condcache.Enumerator = (*Cache)(nil)
	_ condcache.Counter    = (*Cache)(nil)
	_ condcache.Clearer    = (*Cache)(nil)
)
