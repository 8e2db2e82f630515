package metric

import "github.com/prometheus/client_golang/prometheus"

// CoreMetrics holds platform-level metrics shared across components
type CoreMetrics struct {
	// ComponentStatus reports 1 for running components, 0 otherwise
	ComponentStatus *prometheus.GaugeVec

	// NATSConnected reports connection health of the NATS client
	NATSConnected prometheus.Gauge

	// NATSReconnects counts NATS reconnection events
	NATSReconnects prometheus.Counter
}

func newCoreMetrics() *CoreMetrics {
	return &CoreMetrics{
		ComponentStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "autoreply",
			Name:      "component_status",
			Help:      "Component status (1 = running, 0 = stopped)",
		}, []string{"component"}),

		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autoreply",
			Name:      "nats_connected",
			Help:      "NATS connection status (1 = connected)",
		}),

		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autoreply",
			Name:      "nats_reconnects_total",
			Help:      "Total NATS reconnection events",
		}),
	}
}
