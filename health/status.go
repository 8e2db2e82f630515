// Package health aggregates component health into a service-level status
// served on the operational HTTP endpoint.
package health

import (
	"regexp"
	"time"

	"github.com/convodesk/autoreply/component"
)

// Error message sanitization patterns. Health output is exposed over HTTP,
// so connection strings and credentials must never leak through LastError.
var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`)
	pathRegex       = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health state of a component or of the whole service.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics carries health-adjacent counters.
type Metrics struct {
	Uptime       time.Duration `json:"uptime"`
	ErrorCount   int           `json:"error_count"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.Status == "healthy" }

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool { return s.Status == "degraded" }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.Status == "unhealthy" }

// NewHealthy creates a healthy status.
func NewHealthy(component, message string) Status {
	return Status{Component: component, Healthy: true, Status: "healthy", Message: message, Timestamp: time.Now()}
}

// NewUnhealthy creates an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return Status{Component: component, Status: "unhealthy", Message: message, Timestamp: time.Now()}
}

// NewDegraded creates a degraded status.
func NewDegraded(component, message string) Status {
	return Status{Component: component, Status: "degraded", Message: message, Timestamp: time.Now()}
}

// Aggregate folds sub-statuses into one: any unhealthy makes the aggregate
// unhealthy; otherwise any degraded makes it degraded.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no sub-components to aggregate")
	}

	hasUnhealthy, hasDegraded := false, false
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			hasUnhealthy = true
		case sub.IsDegraded():
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(component, "one or more sub-components are unhealthy")
	case hasDegraded:
		status = NewDegraded(component, "one or more sub-components are degraded")
	default:
		status = NewHealthy(component, "all sub-components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}

// FromComponent converts a component's self-reported health into a Status,
// sanitizing the last error for external exposure.
func FromComponent(name string, ch component.HealthStatus) Status {
	message := "component healthy"
	if ch.LastError != "" {
		message = sanitizeErrorMessage(ch.LastError)
	}

	status := NewUnhealthy(name, message)
	if ch.Healthy {
		status = NewHealthy(name, message)
	}
	status.Metrics = &Metrics{
		Uptime:       ch.Uptime,
		ErrorCount:   ch.ErrorCount,
		LastActivity: ch.LastCheck,
	}
	return status
}

func sanitizeErrorMessage(msg string) string {
	sanitized := urlRegex.ReplaceAllString(msg, "[URL]")
	sanitized = pathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")
	sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	return sanitized
}
