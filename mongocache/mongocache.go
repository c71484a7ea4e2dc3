// Package mongocache provides a MongoDB implementation of condcache.Cache.
//
// When a TTL is set, expiry is delegated to a MongoDB TTL index on the
// expiresAt field; the condcache entry codec still enforces freshness on
// read, so the index's minute-level reaper granularity is never observable.
package mongocache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/veltrio/condcache"
)

// Config holds the configuration for creating a MongoDB cache.
type Config struct {
	// URI is the MongoDB connection URI (e.g., "mongodb://localhost:27017").
	// Required.
	URI string

	// Database name. Required.
	Database string

	// Collection name. Optional, defaults to "condcache".
	Collection string

	// Timeout for database operations. Optional, defaults to 5 seconds.
	Timeout time.Duration
}

type cacheEntry struct {
	Key       string     `bson:"_id"`
	Data      []byte     `bson:"data"`
	CreatedAt time.Time  `bson:"createdAt"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

// Cache is an implementation of condcache.Cache that stores responses in a
// MongoDB collection.
type Cache struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// New connects to MongoDB and returns a Cache. A TTL index on expiresAt is
// created so expired entries are reaped server-side.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.URI == "" {
		return nil, errors.New("mongocache: URI is required")
	}
	if config.Database == "" {
		return nil, errors.New("mongocache: database is required")
	}
	if config.Collection == "" {
		config.Collection = "condcache"
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("mongocache: connect: %w", err)
	}

	c := &Cache{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
		timeout:    config.Timeout,
	}

	indexCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	_, err = c.collection.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // best effort cleanup
		return nil, fmt.Errorf("mongocache: create TTL index: %w", err)
	}
	return c, nil
}

// Get returns the stored bytes for key if present.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var entry cacheEntry
	err := c.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mongocache: get %q: %w", key, err)
	}
	return entry.Data, true, nil
}

// Set stores value against key, replacing any previous entry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	entry := cacheEntry{
		Key:       key,
		Data:      value,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		t := time.Now().Add(ttl)
		entry.ExpiresAt = &t
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := c.collection.ReplaceOne(ctx, bson.M{"_id": key}, entry, opts); err != nil {
		return fmt.Errorf("mongocache: set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry with key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongocache: delete %q: %w", key, err)
	}
	return nil
}

// Len returns the number of stored entries.
func (c *Cache) Len(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongocache: len: %w", err)
	}
	return n, nil
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("mongocache: clear: %w", err)
	}
	return nil
}

// Ping checks server reachability.
func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (c *Cache) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

var (
	_ condcache.Cache   = (*Cache)(nil)
	_ condcache.Counter = (*Cache)(nil)
	_ condcache.Clearer = (*Cache)(nil)
	_ condcache.Pinger  = (*Cache)(nil)
)
