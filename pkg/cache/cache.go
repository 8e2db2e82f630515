// Package cache provides a generic, thread-safe LRU cache with built-in
// statistics and optional Prometheus metrics integration.
package cache

import (
	"github.com/convodesk/autoreply/errors"
	"github.com/convodesk/autoreply/metric"
)

// Cache represents a generic cache parameterized by value type V.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found.
	Get(key string) (V, bool)

	// Set stores a value with the given key. Returns true if a new entry
	// was created, false if an existing entry was updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys, most recently used first.
	Keys() []string

	// Stats returns cache statistics. Always non-nil.
	Stats() *Statistics
}

// EvictCallback is called when an entry is evicted from the cache.
type EvictCallback[V any] func(key string, value V)

// Option configures a cache at construction time.
type Option[V any] func(*options[V])

type options[V any] struct {
	evictCallback EvictCallback[V]
	metricsReg    *metric.Registry
	metricsPrefix string
}

// WithEvictionCallback sets a callback invoked for every evicted entry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(o *options[V]) {
		o.evictCallback = callback
	}
}

// WithMetrics exposes cache statistics as Prometheus metrics under the
// given prefix.
func WithMetrics[V any](registry *metric.Registry, prefix string) Option[V] {
	return func(o *options[V]) {
		o.metricsReg = registry
		o.metricsPrefix = prefix
	}
}

func applyOptions[V any](opts ...Option[V]) *options[V] {
	o := &options[V]{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// validateKey rejects keys the cache cannot index.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
