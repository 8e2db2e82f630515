package cache

import (
	"container/list"
	"sync"

	"github.com/convodesk/autoreply/errors"
)

// lruEntry is one entry in the LRU ordering list.
type lruEntry[V any] struct {
	key   string
	value V
}

// lruCache is a thread-safe LRU cache. It evicts the least recently used
// entry when maxSize is exceeded.
type lruCache[V any] struct {
	mu      sync.RWMutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
}

// NewLRU creates an LRU cache with the given maximum size.
func NewLRU[V any](maxSize int, opts ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "cache", "NewLRU", "max size must be positive")
	}

	o := applyOptions(opts...)

	var metrics *cacheMetrics
	if o.metricsReg != nil && o.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewLRU", "metrics registration")
		}
	}

	return &lruCache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: o.evictCallback,
	}, nil
}

// Get retrieves a value by key and marks it as recently used.
func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		var zero V
		c.stats.Miss()
		c.metrics.recordMiss()
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.Hit()
	c.metrics.recordHit()

	return element.Value.(*lruEntry[V]).value, true
}

// Set stores a value with the given key and marks it as recently used.
func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var evictKey string
	var evictValue V
	var shouldEvict bool

	c.mu.Lock()

	if element, exists := c.items[key]; exists {
		element.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(element)
		c.stats.Set()
		c.metrics.recordSet()
		c.mu.Unlock()
		return false, nil
	}

	element := c.order.PushFront(&lruEntry[V]{key: key, value: value})
	c.items[key] = element

	if len(c.items) > c.maxSize {
		back := c.order.Back()
		if back != nil {
			entry := back.Value.(*lruEntry[V])
			if c.evictFn != nil {
				evictKey, evictValue, shouldEvict = entry.key, entry.value, true
			}
			delete(c.items, entry.key)
			c.order.Remove(back)
			c.stats.Eviction()
			c.metrics.recordEviction()
		}
	}

	c.stats.Set()
	c.stats.UpdateSize(int64(len(c.items)))
	c.metrics.recordSet()
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	// Eviction callback runs outside the lock to prevent deadlock.
	if shouldEvict {
		c.evictFn(evictKey, evictValue)
	}

	return true, nil
}

// Delete removes an entry by key.
func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var evictKey string
	var evictValue V
	var shouldEvict bool

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}

	entry := element.Value.(*lruEntry[V])
	if c.evictFn != nil {
		evictKey, evictValue, shouldEvict = entry.key, entry.value, true
	}

	delete(c.items, entry.key)
	c.order.Remove(element)
	c.stats.Delete()
	c.stats.UpdateSize(int64(len(c.items)))
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	if shouldEvict {
		c.evictFn(evictKey, evictValue)
	}

	return true, nil
}

// Clear removes all entries from the cache.
func (c *lruCache[V]) Clear() error {
	var evicted []lruEntry[V]

	c.mu.Lock()
	if c.evictFn != nil {
		evicted = make([]lruEntry[V], 0, len(c.items))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			evicted = append(evicted, *element.Value.(*lruEntry[V]))
		}
	}

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.stats.UpdateSize(0)
	c.metrics.updateSize(0)
	c.mu.Unlock()

	for _, entry := range evicted {
		c.evictFn(entry.key, entry.value)
	}

	return nil
}

// Size returns the current number of entries.
func (c *lruCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all keys, most recently used first.
func (c *lruCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruEntry[V]).key)
	}
	return keys
}

// Stats returns cache statistics.
func (c *lruCache[V]) Stats() *Statistics {
	return c.stats
}
