// Package autoreply provides the NATS-facing processor component: it
// subscribes to conversation traffic, runs the auto-reply engine, and
// publishes dispatch events for downstream consumers.
package autoreply

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/convodesk/autoreply/component"
	"github.com/convodesk/autoreply/engine"
	"github.com/convodesk/autoreply/errors"
	"github.com/convodesk/autoreply/metric"
)

var _ component.Component = (*Processor)(nil)

// Transport is the slice of the NATS client the processor needs.
type Transport interface {
	Publisher
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Processor wires conversation traffic into the engine.
type Processor struct {
	metadata  component.Metadata
	config    Config
	transport Transport
	engine    *engine.Engine
	metrics   *processorMetrics
	logger    *slog.Logger

	mu        sync.RWMutex
	started   bool
	startTime time.Time

	messagesReceived atomic.Int64
	handlerErrors    atomic.Int64
	lastError        atomic.Pointer[string]
	lastActivity     atomic.Int64 // unix nanos
}

// Option configures a Processor at construction time.
type Option func(*Processor)

// WithLogger sets the processor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithMetrics registers processor metrics with the shared registry.
func WithMetrics(registry *metric.Registry) Option {
	return func(p *Processor) { p.metrics = newProcessorMetrics(registry) }
}

// New creates an auto-reply processor. The engine is started and stopped
// with the processor.
func New(transport Transport, eng *engine.Engine, config Config, opts ...Option) *Processor {
	p := &Processor{
		metadata: component.Metadata{
			Name:        "autoreply-processor",
			Type:        "processor",
			Description: "Evaluates conversation messages against auto-reply rules and dispatches replies",
			Version:     "1.0.0",
		},
		config:    config,
		transport: transport,
		engine:    eng,
		logger:    slog.Default().With("component", "autoreply-processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Meta returns component metadata.
func (p *Processor) Meta() component.Metadata {
	return p.metadata
}

// Start validates configuration, starts the engine, and subscribes to the
// inbound and agent subjects.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.ErrAlreadyStarted
	}
	if err := p.config.Validate(); err != nil {
		return err
	}

	if err := p.engine.Start(ctx); err != nil {
		return errors.Wrap(err, "Processor", "Start", "start engine")
	}

	if err := p.transport.Subscribe(ctx, p.config.InboundSubject, p.handleInbound); err != nil {
		return errors.WrapTransient(err, "Processor", "Start", "subscribe "+p.config.InboundSubject)
	}
	if err := p.transport.Subscribe(ctx, p.config.AgentSubject, p.handleAgentReply); err != nil {
		return errors.WrapTransient(err, "Processor", "Start", "subscribe "+p.config.AgentSubject)
	}

	p.started = true
	p.startTime = time.Now()
	p.logger.Info("processor started",
		"inbound_subject", p.config.InboundSubject,
		"agent_subject", p.config.AgentSubject)
	return nil
}

// Stop shuts the engine down. Subscriptions are drained by the transport's
// own Close.
func (p *Processor) Stop(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	if err := p.engine.Stop(timeout); err != nil {
		return errors.Wrap(err, "Processor", "Stop", "stop engine")
	}
	p.logger.Info("processor stopped")
	return nil
}

// handleInbound decodes one conversation message and runs evaluation.
// Malformed payloads are counted and skipped.
func (p *Processor) handleInbound(ctx context.Context, data []byte) {
	p.messagesReceived.Add(1)
	p.lastActivity.Store(time.Now().UnixNano())
	p.metrics.recordReceived("inbound")

	var msg engine.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.recordError("decode inbound message", err)
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	event, err := p.engine.Evaluate(ctx, msg)
	if err != nil {
		p.recordError("evaluate message", err)
		return
	}
	if event != nil {
		p.publishEvent(ctx, *event)
	}
}

// handleAgentReply decodes an agent-reply notification and cancels pending
// no-response triggers.
func (p *Processor) handleAgentReply(ctx context.Context, data []byte) {
	p.messagesReceived.Add(1)
	p.lastActivity.Store(time.Now().UnixNano())
	p.metrics.recordReceived("agent")

	var reply engine.AgentResponded
	if err := json.Unmarshal(data, &reply); err != nil {
		p.recordError("decode agent reply", err)
		return
	}
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now().UTC()
	}

	if err := p.engine.NotifyAgentResponded(ctx, reply.ConversationID, reply.Timestamp); err != nil {
		p.recordError("cancel triggers", err)
	}
}

// publishEvent emits a dispatch event for audit consumers. Publication is
// best effort.
func (p *Processor) publishEvent(ctx context.Context, event any) {
	if p.config.EventSubject == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.recordError("marshal dispatch event", err)
		return
	}
	if err := p.transport.Publish(ctx, p.config.EventSubject, data); err != nil {
		p.recordError("publish dispatch event", err)
		return
	}
	p.metrics.recordEventPublished()
}

// recordError counts any handler failure: decode, evaluate, or publish.
func (p *Processor) recordError(action string, err error) {
	p.handlerErrors.Add(1)
	msg := action + ": " + err.Error()
	p.lastError.Store(&msg)
	p.metrics.recordError()
	p.logger.Warn(action+" failed", "error", err)
}

// Health returns current health status.
func (p *Processor) Health() component.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := component.HealthStatus{
		Healthy:    p.started,
		LastCheck:  time.Now(),
		ErrorCount: int(p.handlerErrors.Load()),
	}
	if last := p.lastError.Load(); last != nil {
		status.LastError = *last
	}
	if !p.startTime.IsZero() {
		status.Uptime = time.Since(p.startTime)
	}
	return status
}

// DataFlow returns current message flow metrics.
func (p *Processor) DataFlow() component.FlowMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flow := component.FlowMetrics{}
	received := p.messagesReceived.Load()
	if !p.startTime.IsZero() && received > 0 {
		if secs := time.Since(p.startTime).Seconds(); secs > 0 {
			flow.MessagesPerSecond = float64(received) / secs
		}
		flow.ErrorRate = float64(p.handlerErrors.Load()) / float64(received)
	}
	if nanos := p.lastActivity.Load(); nanos > 0 {
		flow.LastActivity = time.Unix(0, nanos)
	}
	return flow
}

// Engine exposes the underlying engine for introspection endpoints.
func (p *Processor) Engine() *engine.Engine {
	return p.engine
}
