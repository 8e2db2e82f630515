package autoreply

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/convodesk/autoreply/metric"
)

// processorMetrics tracks message intake and event publication. Nil-safe.
type processorMetrics struct {
	received        *prometheus.CounterVec
	eventsPublished prometheus.Counter
	handlerErrors   prometheus.Counter
}

func newProcessorMetrics(registry *metric.Registry) *processorMetrics {
	m := &processorMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoreply",
			Name:      "processor_messages_received_total",
			Help:      "Messages received by subject kind",
		}, []string{"kind"}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autoreply",
			Name:      "processor_events_published_total",
			Help:      "Dispatch events published for audit consumers",
		}),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autoreply",
			Name:      "processor_handler_errors_total",
			Help:      "Handler failures (decode, evaluate, publish)",
		}),
	}

	registry.MustRegister("autoreply-processor", map[string]prometheus.Collector{
		"processor_messages_received_total": m.received,
		"processor_events_published_total":  m.eventsPublished,
		"processor_handler_errors_total":    m.handlerErrors,
	})

	return m
}

func (m *processorMetrics) recordReceived(kind string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(kind).Inc()
}

func (m *processorMetrics) recordEventPublished() {
	if m == nil {
		return
	}
	m.eventsPublished.Inc()
}

func (m *processorMetrics) recordError() {
	if m == nil {
		return
	}
	m.handlerErrors.Inc()
}
