// Package cache stores stylized results so that repeated requests for the
// same content/style pair and options are served without re-running the
// encoder, transforms and decoders.
//
// Three backends implement [Cache]:
//   - [FileCache] for the CLI (one JSON file per entry under ~/.cache/stylewct)
//   - [RedisCache] for the HTTP server and shared worker fleets
//   - [NullCache] when caching is disabled
//
// Keys are produced by a [Keyer]. [DefaultKeyer] hashes the input tensors and
// every option that influences the output; [ScopedKeyer] adds a namespace
// prefix. Values are opaque bytes; the pipeline stores zstd-compressed
// tensors (see [Compress]).
//
// The cache is best effort: callers log and ignore its errors.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store with per-entry expiration.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss is reported with hit=false and a
	// nil error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by caches that can drop all of their entries.
type Clearer interface {
	// Clear removes every entry and reports how many were removed.
	Clear(ctx context.Context) (int, error)
}

// Default time-to-live values.
const (
	// TTLResult applies to final stylized images.
	TTLResult = 7 * 24 * time.Hour
)
