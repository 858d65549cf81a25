// Package cache provides the key-value store backing reliefkit's task
// results.
//
// Analyses run asynchronously: a task runner stores each finished
// [pipeline.Result] under a key derived from the task ID so a later poll (or
// another process) can read it back. Overlays themselves are never cached;
// identical requests always recompute.
//
// # Backends
//
//   - [FileCache]: one JSON file per entry under a directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for runners on several hosts
//   - [NullCache]: stores nothing
//
// Wrap any backend with [Instrument] to report hits, misses and writes to the
// registered [observability.CacheHooks].
//
// [pipeline.Result]: github.com/matzehuels/reliefkit/pkg/pipeline.Result
// [observability.CacheHooks]: github.com/matzehuels/reliefkit/pkg/observability.CacheHooks
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a byte-oriented key-value store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss.
	// Expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Keyer generates store keys.
type Keyer interface {
	// ResultKey returns the key of a task's stored result.
	ResultKey(taskID string) string
}

// DefaultKeyer produces unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ResultKey implements Keyer.
func (DefaultKeyer) ResultKey(taskID string) string {
	return "result:" + taskID
}

// KeyType returns the kind of a key ("result"), skipping any namespace
// segments in front of it. It labels cache metrics.
func KeyType(key string) string {
	parts := strings.Split(key, ":")
	for _, p := range parts {
		if p == "result" {
			return p
		}
	}
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}
