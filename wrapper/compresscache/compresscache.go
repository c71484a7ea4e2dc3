// Package compresscache provides a condcache.Cache wrapper that compresses
// stored entries to reduce storage and network usage. Gzip, brotli and
// snappy are supported; the algorithm used is recorded in a one-byte marker
// so entries written with one algorithm remain readable after a
// configuration change.
package compresscache

import (
	"context"
	"fmt"
	"time"

	"github.com/veltrio/condcache"
)

// Algorithm identifies a compression algorithm.
type Algorithm byte

const (
	// None stores entries uncompressed.
	None Algorithm = iota
	// Gzip balances compression ratio and speed.
	Gzip
	// Brotli gives the best ratio at the highest CPU cost.
	Brotli
	// Snappy is the fastest with a lower ratio.
	Snappy
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Snappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// minCompressSize is the payload size below which compression is skipped;
// tiny entries usually grow when compressed.
const minCompressSize = 128

// Cache wraps another condcache.Cache with transparent compression.
type Cache struct {
	cache     condcache.Cache
	algorithm Algorithm
}

// New wraps cache with the given algorithm.
func New(cache condcache.Cache, algorithm Algorithm) *Cache {
	return &Cache{cache: cache, algorithm: algorithm}
}

// Get retrieves and decompresses a value.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if len(data) == 0 {
		return data, true, nil
	}

	marker := Algorithm(data[0])
	payload := data[1:]
	if marker == None {
		return payload, true, nil
	}
	decompressed, err := decompress(marker, payload)
	if err != nil {
		return nil, false, fmt.Errorf("compresscache: decompress %q (%s): %w", key, marker, err)
	}
	return decompressed, true, nil
}

// Set compresses and stores a value. Values under the size threshold are
// stored uncompressed behind a None marker.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	marker := c.algorithm
	payload := value

	if marker != None && len(value) >= minCompressSize {
		compressed, err := compress(marker, value)
		if err != nil {
			return fmt.Errorf("compresscache: compress %q (%s): %w", key, marker, err)
		}
		if len(compressed) < len(value) {
			payload = compressed
		} else {
			marker = None
		}
	} else {
		marker = None
	}

	framed := make([]byte, 0, len(payload)+1)
	framed = append(framed, byte(marker))
	framed = append(framed, payload...)
	return c.cache.Set(ctx, key, framed, ttl)
}

// Delete removes the entry with key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}

// Clear clears the underlying cache when supported.
func (c *Cache) Clear(ctx context.Context) error {
	if clearer, ok := c.cache.(condcache.Clearer); ok {
		return clearer.Clear(ctx)
	}
	return nil
}

// Len reports the underlying entry count when supported.
func (c *Cache) Len(ctx context.Context) (int64, error) {
	if counter, ok := c.cache.(condcache.Counter); ok {
		return counter.Len(ctx)
	}
	return 0, nil
}

func compress(algorithm Algorithm, data []byte) ([]byte, error) {
	switch algorithm {
	case Gzip:
		return gzipCompress(data)
	case Brotli:
		return brotliCompress(data)
	case Snappy:
		return snappyCompress(data)
	default:
		return nil, fmt.Errorf("unsupported algorithm %d", algorithm)
	}
}

func decompress(algorithm Algorithm, data []byte) ([]byte, error) {
	switch algorithm {
	case Gzip:
		return gzipDecompress(data)
	case Brotli:
		return brotliDecompress(data)
	case Snappy:
		return snappyDecompress(data)
	default:
		return nil, fmt.Errorf("unsupported algorithm %d", algorithm)
	}
}

var _ condcache.Cache = (*Cache)(nil)
