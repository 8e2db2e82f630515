package cache

import "sync/atomic"

// Statistics tracks cache activity. All counters are atomic; statistics
// are always collected since observability is not optional.
type Statistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
	size      atomic.Int64
}

// NewStatistics creates a zeroed Statistics.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Hit records a cache hit.
func (s *Statistics) Hit() { s.hits.Add(1) }

// Miss records a cache miss.
func (s *Statistics) Miss() { s.misses.Add(1) }

// Set records a store operation.
func (s *Statistics) Set() { s.sets.Add(1) }

// Delete records a delete operation.
func (s *Statistics) Delete() { s.deletes.Add(1) }

// Eviction records an LRU eviction.
func (s *Statistics) Eviction() { s.evictions.Add(1) }

// UpdateSize records the current entry count.
func (s *Statistics) UpdateSize(size int64) { s.size.Store(size) }

// Hits returns the total number of cache hits.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the total number of cache misses.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the total number of store operations.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Deletes returns the total number of delete operations.
func (s *Statistics) Deletes() int64 { return s.deletes.Load() }

// Evictions returns the total number of evictions.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// CurrentSize returns the last recorded entry count.
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// HitRatio returns hits / (hits + misses), or 0 with no activity.
func (s *Statistics) HitRatio() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
