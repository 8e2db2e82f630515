// Package component defines the lifecycle and introspection contracts shared
// by the service's long-running pieces (the auto-reply processor, transport
// clients). The management layer starts, stops, and health-checks components
// through these interfaces without knowing their concrete types.
package component

import (
	"context"
	"time"
)

// Component is a long-running piece of the service with a managed lifecycle:
//   - Start(ctx) begins work; the context governs the component's lifetime
//   - Stop(timeout) shuts down gracefully within the timeout
type Component interface {
	Meta() Metadata
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Health() HealthStatus
	DataFlow() FlowMetrics
}

// Metadata describes what a component is.
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "processor", "transport", "storage"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus describes the current health state of a component.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current message flow through a component.
type FlowMetrics struct {
	MessagesPerSecond float64   `json:"messages_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}
