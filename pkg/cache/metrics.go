package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/convodesk/autoreply/metric"
)

// cacheMetrics mirrors Statistics into Prometheus collectors when enabled.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCacheMetrics(registry *metric.Registry, prefix string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_cache_hits_total",
			Help: "Total cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_cache_misses_total",
			Help: "Total cache misses",
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_cache_sets_total",
			Help: "Total cache store operations",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_cache_evictions_total",
			Help: "Total cache evictions",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_cache_size",
			Help: "Current cache entry count",
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		prefix + "_cache_hits_total":      m.hits,
		prefix + "_cache_misses_total":    m.misses,
		prefix + "_cache_sets_total":      m.sets,
		prefix + "_cache_evictions_total": m.evictions,
		prefix + "_cache_size":            m.size,
	} {
		if err := registry.Register("cache", name, c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *cacheMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *cacheMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *cacheMetrics) recordSet() {
	if m != nil {
		m.sets.Inc()
	}
}

func (m *cacheMetrics) recordEviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *cacheMetrics) updateSize(size int) {
	if m != nil {
		m.size.Set(float64(size))
	}
}
