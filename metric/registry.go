// Package metric provides a Prometheus metrics registry shared by all
// autoreply components, with per-component registration and duplicate
// detection.
package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/convodesk/autoreply/errors"
)

// Registry manages the registration and lifecycle of metrics
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Core               *CoreMetrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a new metrics registry with core platform metrics
// and Go runtime collectors.
func NewRegistry() *Registry {
	prometheusRegistry := prometheus.NewRegistry()

	r := &Registry{
		prometheusRegistry: prometheusRegistry,
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	r.Core = newCoreMetrics()
	r.prometheusRegistry.MustRegister(
		r.Core.ComponentStatus,
		r.Core.NATSConnected,
		r.Core.NATSReconnects,
	)

	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Register registers a collector for a component under a metric name.
// Registering the same (component, name) pair twice is an invalid-input error.
func (r *Registry) Register(component, name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", name, component),
			"Registry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "Registry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "Registry", "Register",
			"register collector with prometheus")
	}

	r.registeredMetrics[key] = collector
	return nil
}

// MustRegister registers collectors for a component, panicking on conflict.
// Intended for process-startup registration where a conflict is a programming error.
func (r *Registry) MustRegister(component string, collectors map[string]prometheus.Collector) {
	for name, c := range collectors {
		if err := r.Register(component, name, c); err != nil {
			panic(err)
		}
	}
}

// Unregister removes a metric from the registry
func (r *Registry) Unregister(component, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)

	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registeredMetrics, key)
	}

	return success
}
