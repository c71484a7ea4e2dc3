// Package pgcache provides a PostgreSQL implementation of condcache.Cache
// using github.com/jackc/pgx.
//
// Entries carry an expires_at column; expired rows are filtered on read and
// reaped opportunistically on write.
package pgcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veltrio/condcache"
)

// DefaultTableName is the default table used for cache storage.
const DefaultTableName = "condcache"

// ErrNilPool is returned when a nil pool is provided.
var ErrNilPool = errors.New("pgcache: pool cannot be nil")

// Cache is an implementation of condcache.Cache that stores responses in
// PostgreSQL.
type Cache struct {
	pool      *pgxpool.Pool
	tableName string
}

// Config holds the configuration for the PostgreSQL cache.
type Config struct {
	// TableName for cache entries (default: "condcache").
	TableName string
}

// New returns a Cache backed by pool.
func New(pool *pgxpool.Pool, config Config) (*Cache, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	if config.TableName == "" {
		config.TableName = DefaultTableName
	}
	return &Cache{pool: pool, tableName: config.TableName}, nil
}

// CreateTable creates the cache table if it doesn't exist.
func (c *Cache) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + c.tableName + ` (
			key TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		)
	`
	if _, err := c.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("pgcache: create table: %w", err)
	}
	return nil
}

// Get returns the stored bytes for key if present and not expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT data FROM ` + c.tableName + ` WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	var data []byte
	if err := c.pool.QueryRow(ctx, query, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pgcache: get %q: %w", key, err)
	}
	return data, true, nil
}

// Set stores value against key, replacing any previous entry. Expired rows
// are reaped on the way through.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	query := `
		INSERT INTO ` + c.tableName + ` (key, data, created_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (key) DO UPDATE SET data = $2, created_at = now(), expires_at = $3
	`
	if _, err := c.pool.Exec(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("pgcache: set %q: %w", key, err)
	}

	reap := `DELETE FROM ` + c.tableName + ` WHERE expires_at IS NOT NULL AND expires_at <= now()`
	if _, err := c.pool.Exec(ctx, reap); err != nil {
		condcache.GetLogger().Warn("failed to reap expired pgcache rows", "error", err)
	}
	return nil
}

// Delete removes the entry with key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM ` + c.tableName + ` WHERE key = $1`
	if _, err := c.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("pgcache: delete %q: %w", key, err)
	}
	return nil
}

// Keys returns all non-expired keys.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	query := `SELECT key FROM ` + c.tableName + ` WHERE expires_at IS NULL OR expires_at > now()`
	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgcache: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("pgcache: keys scan: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgcache: keys rows: %w", err)
	}
	return keys, nil
}

// Len returns the number of non-expired entries.
func (c *Cache) Len(ctx context.Context) (int64, error) {
	query := `SELECT count(*) FROM ` + c.tableName + ` WHERE expires_at IS NULL OR expires_at > now()`
	var n int64
	if err := c.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgcache: len: %w", err)
	}
	return n, nil
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM `+c.tableName); err != nil {
		return fmt.Errorf("pgcache: clear: %w", err)
	}
	return nil
}

// Ping checks database reachability.
func (c *Cache) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases the connection pool.
func (c *Cache) Close() {
	c.pool.Close()
}

var (
	_ condcache.Cache      = (*Cache)(nil)
	_ condcache.Enumerator = (*Cache)(nil)
	_ condcache.Counter    = (*Cache)(nil)
	_ condcache.Clearer    = (*Cache)(nil)
	_ condcache.Pinger     = (*Cache)(nil)
)
