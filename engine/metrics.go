package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/convodesk/autoreply/metric"
)

// engineMetrics tracks evaluation and dispatch activity. All methods are
// nil-safe so the engine runs unchanged without a metrics registry.
type engineMetrics struct {
	evaluations      prometheus.Counter
	matches          prometheus.Counter
	dispatches       *prometheus.CounterVec
	triggersArmed    prometheus.Gauge
	evaluateDuration prometheus.Histogram
}

func newEngineMetrics(registry *metric.Registry) *engineMetrics {
	m := &engineMetrics{
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autoreply",
			Name:      "engine_evaluations_total",
			Help:      "Total inbound messages evaluated",
		}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autoreply",
			Name:      "engine_matches_total",
			Help:      "Total evaluations that selected a rule",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoreply",
			Name:      "engine_dispatches_total",
			Help:      "Total dispatch events by status",
		}, []string{"status"}),
		triggersArmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autoreply",
			Name:      "engine_triggers_armed",
			Help:      "Currently armed delayed and no-response triggers",
		}),
		evaluateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autoreply",
			Name:      "engine_evaluate_duration_seconds",
			Help:      "Time spent evaluating an inbound message",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}

	registry.MustRegister("engine", map[string]prometheus.Collector{
		"engine_evaluations_total":         m.evaluations,
		"engine_matches_total":             m.matches,
		"engine_dispatches_total":          m.dispatches,
		"engine_triggers_armed":            m.triggersArmed,
		"engine_evaluate_duration_seconds": m.evaluateDuration,
	})

	return m
}

func (m *engineMetrics) recordEvaluation(seconds float64) {
	if m == nil {
		return
	}
	m.evaluations.Inc()
	m.evaluateDuration.Observe(seconds)
}

func (m *engineMetrics) recordMatch() {
	if m == nil {
		return
	}
	m.matches.Inc()
}

func (m *engineMetrics) recordDispatch(status string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(status).Inc()
}

func (m *engineMetrics) setArmed(n int) {
	if m == nil {
		return
	}
	m.triggersArmed.Set(float64(n))
}
