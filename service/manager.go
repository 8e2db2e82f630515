// Package service manages the lifecycle of the service's components:
// ordered startup, reverse-order shutdown, and health collection.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/convodesk/autoreply/component"
	"github.com/convodesk/autoreply/errors"
	"github.com/convodesk/autoreply/health"
)

// Manager starts components in registration order and stops them in
// reverse, so consumers outlive the things they depend on.
type Manager struct {
	logger  *slog.Logger
	monitor *health.Monitor

	mu         sync.Mutex
	components []component.Component
	started    bool
}

// NewManager creates a manager reporting component health into monitor.
// A nil monitor disables health collection.
func NewManager(monitor *health.Monitor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default().With("component", "service-manager")
	}
	return &Manager{logger: logger, monitor: monitor}
}

// Register adds a component. Must be called before StartAll.
func (m *Manager) Register(c component.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.ErrAlreadyStarted
	}
	m.components = append(m.components, c)
	return nil
}

// StartAll starts every registered component in order. On failure the
// components already started are stopped in reverse before returning.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.ErrAlreadyStarted
	}

	for i, c := range m.components {
		name := c.Meta().Name
		if err := c.Start(ctx); err != nil {
			m.logger.Error("component failed to start", "component", name, "error", err)
			for j := i - 1; j >= 0; j-- {
				if stopErr := m.components[j].Stop(5 * time.Second); stopErr != nil {
					m.logger.Warn("rollback stop failed",
						"component", m.components[j].Meta().Name, "error", stopErr)
				}
			}
			return errors.Wrap(err, "Manager", "StartAll", "start "+name)
		}
		m.logger.Info("component started", "component", name)
	}

	m.started = true
	return nil
}

// StopAll stops every component in reverse order, continuing past
// failures. The first error is returned.
func (m *Manager) StopAll(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	var firstErr error
	for i := len(m.components) - 1; i >= 0; i-- {
		c := m.components[i]
		name := c.Meta().Name
		if err := c.Stop(timeout); err != nil {
			m.logger.Warn("component failed to stop", "component", name, "error", err)
			if firstErr == nil {
				firstErr = errors.Wrap(err, "Manager", "StopAll", "stop "+name)
			}
			continue
		}
		m.logger.Info("component stopped", "component", name)
	}
	return firstErr
}

// CollectHealth polls every component and pushes its status into the
// monitor. Call periodically or on health-endpoint demand.
func (m *Manager) CollectHealth() {
	if m.monitor == nil {
		return
	}

	m.mu.Lock()
	components := append([]component.Component(nil), m.components...)
	m.mu.Unlock()

	for _, c := range components {
		name := c.Meta().Name
		m.monitor.Update(name, health.FromComponent(name, c.Health()))
	}
}
