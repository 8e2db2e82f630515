// Package engine implements the auto-reply decision core: it evaluates
// inbound customer messages against the rule set, resolves priority, runs
// the trigger protocol, and dispatches at most one rendered reply per
// message.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/convodesk/autoreply/conversation"
	"github.com/convodesk/autoreply/dispatch"
	"github.com/convodesk/autoreply/errors"
	"github.com/convodesk/autoreply/metric"
	"github.com/convodesk/autoreply/pkg/worker"
	"github.com/convodesk/autoreply/rule"
	"github.com/convodesk/autoreply/template"
)

// SenderRole identifies who authored a conversation message.
type SenderRole string

// Message sender roles. Only customer messages trigger rule evaluation.
const (
	SenderCustomer SenderRole = "customer"
	SenderAgent    SenderRole = "agent"
	SenderSystem   SenderRole = "system"
)

// InboundMessage is a message arriving on a conversation.
type InboundMessage struct {
	ConversationID string     `json:"conversation_id"`
	Text           string     `json:"text"`
	SenderRole     SenderRole `json:"sender_role"`
	Timestamp      time.Time  `json:"timestamp"`
}

// AgentResponded signals that a human agent replied on a conversation.
type AgentResponded struct {
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// OutboundSender delivers rendered replies to the conversation transport.
// Delivery beyond this interface (websocket fan-out, push) is external.
type OutboundSender interface {
	Send(ctx context.Context, conversationID, text string) error
}

// usageRecord is the async persistence work item for a fired rule.
type usageRecord struct {
	ruleID  string
	firedAt time.Time
}

// Engine evaluates inbound messages and dispatches auto-replies.
//
// Concurrency model: all decisions for one conversation (evaluation, timer
// expiry, agent-response cancellation) are serialized by a per-conversation
// mutex. Rendering and outbound sends happen after the mutex is released so
// a slow downstream never blocks other activity on the conversation. Usage
// persistence runs on a worker pool.
type Engine struct {
	repo      rule.Repository
	provider  conversation.Provider
	sender    OutboundSender
	store     *rule.Store
	evaluator *rule.Evaluator
	scheduler *Scheduler
	clock     Clock
	log       *dispatch.Log
	pool      *worker.Pool[usageRecord]
	metrics   *engineMetrics
	logger    *slog.Logger

	poolWorkers int
	poolQueue   int

	lockMu    sync.Mutex
	convLocks map[string]*sync.Mutex

	lifecycleMu sync.Mutex
	started     bool
	rootCtx     context.Context
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithMetrics registers engine metrics with the shared registry.
func WithMetrics(registry *metric.Registry) Option {
	return func(e *Engine) { e.metrics = newEngineMetrics(registry) }
}

// WithDispatchLog replaces the default bounded dispatch log.
func WithDispatchLog(log *dispatch.Log) Option {
	return func(e *Engine) { e.log = log }
}

// WithWorkers sizes the usage-persistence worker pool.
func WithWorkers(workers, queueSize int) Option {
	return func(e *Engine) { e.poolWorkers, e.poolQueue = workers, queueSize }
}

// New creates an engine. Rules are loaded from the repository on Start.
func New(repo rule.Repository, provider conversation.Provider, sender OutboundSender, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		provider:    provider,
		sender:      sender,
		store:       rule.NewStore(),
		clock:       NewClock(),
		log:         dispatch.NewLog(0),
		logger:      slog.Default().With("component", "engine"),
		convLocks:   make(map[string]*sync.Mutex),
		poolWorkers: 4,
		poolQueue:   256,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.evaluator = rule.NewEvaluator(e.logger)
	e.scheduler = NewScheduler(e.clock)
	e.pool = worker.NewPool(e.poolWorkers, e.poolQueue, e.persistUsage)
	return e
}

// Start loads the rule set and starts the persistence workers.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.started {
		return errors.ErrAlreadyStarted
	}

	if err := e.ReloadRules(ctx); err != nil {
		return err
	}
	if err := e.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Engine", "Start", "start worker pool")
	}

	e.rootCtx = ctx
	e.started = true
	e.logger.Info("engine started", "rules", e.store.Len())
	return nil
}

// Stop cancels armed triggers and drains the persistence pool. Armed
// triggers are lost; they do not survive a restart.
func (e *Engine) Stop(timeout time.Duration) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if !e.started {
		return nil
	}
	e.started = false

	cancelled := e.scheduler.CancelAll()
	if cancelled > 0 {
		e.logger.Info("dropped armed triggers on shutdown", "count", cancelled)
	}
	e.metrics.setArmed(0)

	if err := e.pool.Stop(timeout); err != nil {
		return errors.Wrap(err, "Engine", "Stop", "drain worker pool")
	}
	return nil
}

// ReloadRules refreshes the store from the repository. Safe to call while
// the engine is serving traffic; the swap is atomic.
func (e *Engine) ReloadRules(ctx context.Context) error {
	rules, err := e.repo.List(ctx)
	if err != nil {
		return errors.WrapTransient(err, "Engine", "ReloadRules", "list rules")
	}
	if err := e.store.Reload(rules); err != nil {
		return errors.Wrap(err, "Engine", "ReloadRules", "reload store")
	}
	e.logger.Info("rules reloaded", "count", len(rules))
	return nil
}

// Evaluate processes one inbound message. Messages from non-customer
// senders are ignored. When the winning rule fires inline (immediate with
// no delay, or session-start) the resulting dispatch event is returned;
// when a trigger is armed instead, Evaluate returns nil and the dispatch
// happens later.
func (e *Engine) Evaluate(ctx context.Context, msg InboundMessage) (*dispatch.Event, error) {
	if msg.SenderRole != SenderCustomer {
		return nil, nil
	}

	start := e.clock.Now()
	defer func() {
		e.metrics.recordEvaluation(e.clock.Now().Sub(start).Seconds())
	}()

	convCtx, err := e.provider.Context(ctx, msg.ConversationID)
	if err != nil {
		return nil, errors.WrapTransient(err, "Engine", "Evaluate", "load conversation context")
	}

	excerpt := dispatch.Excerpt(msg.Text)

	lock := e.conversationLock(msg.ConversationID)
	lock.Lock()

	winner, ok := e.selectRule(convCtx, msg.Text)
	if !ok {
		lock.Unlock()
		return nil, nil
	}
	e.metrics.recordMatch()

	switch winner.TriggerCondition {
	case rule.TriggerSessionStart:
		fired, err := e.provider.MarkSessionStart(ctx, msg.ConversationID)
		if err != nil {
			lock.Unlock()
			return nil, errors.WrapTransient(err, "Engine", "Evaluate", "mark session start")
		}
		if !fired {
			lock.Unlock()
			return nil, nil
		}
		lock.Unlock()
		event := e.dispatchRule(ctx, msg.ConversationID, winner, convCtx.CustomerVariables, excerpt, e.clock.Now())
		return &event, nil

	case rule.TriggerImmediate:
		if winner.Delay <= 0 {
			lock.Unlock()
			event := e.dispatchRule(ctx, msg.ConversationID, winner, convCtx.CustomerVariables, excerpt, e.clock.Now())
			return &event, nil
		}
		e.armTrigger(msg.ConversationID, winner, excerpt, winner.Delay)
		lock.Unlock()
		return nil, nil

	case rule.TriggerNoResponse:
		e.armTrigger(msg.ConversationID, winner, excerpt, winner.NoResponseTimeout)
		lock.Unlock()
		return nil, nil
	}

	lock.Unlock()
	return nil, nil
}

// NotifyAgentResponded cancels armed no-response triggers for the
// conversation. Cancellations are recorded in the dispatch log.
func (e *Engine) NotifyAgentResponded(_ context.Context, conversationID string, at time.Time) error {
	lock := e.conversationLock(conversationID)
	lock.Lock()
	cancelled := e.scheduler.CancelNoResponse(conversationID)
	lock.Unlock()

	for _, c := range cancelled {
		e.log.Append(dispatch.NewEvent(conversationID, c.RuleID, "", c.Excerpt, dispatch.StatusCancelled, at))
		e.metrics.recordDispatch(string(dispatch.StatusCancelled))
		e.logger.Debug("no-response trigger cancelled",
			"conversation_id", conversationID, "rule_id", c.RuleID)
	}
	e.metrics.setArmed(e.scheduler.ArmedCount())
	return nil
}

// GetUsageStats returns fire statistics for one rule.
func (e *Engine) GetUsageStats(ruleID string) (rule.UsageStats, bool) {
	return e.store.UsageStats(ruleID)
}

// DispatchLog exposes the bounded in-memory dispatch log.
func (e *Engine) DispatchLog() *dispatch.Log {
	return e.log
}

// Stats reports aggregate engine activity.
func (e *Engine) Stats() Stats {
	return Stats{
		Rules:         e.store.Len(),
		ArmedTriggers: e.scheduler.ArmedCount(),
		Pool:          e.pool.Stats(),
	}
}

// Stats is a snapshot of engine activity.
type Stats struct {
	Rules         int              `json:"rules"`
	ArmedTriggers int              `json:"armed_triggers"`
	Pool          worker.PoolStats `json:"pool"`
}

// selectRule filters the scope-indexed candidates by match and resolves
// priority. Caller holds the conversation lock.
func (e *Engine) selectRule(convCtx conversation.Context, text string) (rule.Rule, bool) {
	candidates := e.store.Candidates(convCtx.Department, convCtx.AssignedAgentID)

	matched := candidates[:0:0]
	for _, r := range candidates {
		if e.evaluator.Matches(r, text) {
			matched = append(matched, r)
		}
	}
	return rule.Resolve(matched)
}

// armTrigger schedules a delayed fire. Caller holds the conversation lock;
// arming is a no-op when a trigger for the pair is already pending.
func (e *Engine) armTrigger(conversationID string, r rule.Rule, excerpt string, delay time.Duration) {
	armed := e.scheduler.Arm(conversationID, r, excerpt, delay, func(firedAt time.Time) {
		e.fireDelayed(conversationID, r, excerpt, firedAt)
	})
	if armed {
		e.logger.Debug("trigger armed",
			"conversation_id", conversationID, "rule_id", r.ID,
			"condition", string(r.TriggerCondition), "delay", delay)
	}
	e.metrics.setArmed(e.scheduler.ArmedCount())
}

// fireDelayed runs on timer expiry. It re-reads the conversation snapshot
// under the conversation lock so rendering sees current variables, then
// dispatches off the lock.
func (e *Engine) fireDelayed(conversationID string, r rule.Rule, excerpt string, firedAt time.Time) {
	ctx := e.rootContext()

	lock := e.conversationLock(conversationID)
	lock.Lock()
	convCtx, err := e.provider.Context(ctx, conversationID)
	lock.Unlock()

	vars := convCtx.CustomerVariables
	if err != nil {
		e.logger.Warn("conversation context unavailable at fire time, rendering without variables",
			"conversation_id", conversationID, "rule_id", r.ID, "error", err)
		vars = nil
	}

	e.dispatchRule(ctx, conversationID, r, vars, excerpt, firedAt)
	e.metrics.setArmed(e.scheduler.ArmedCount())
}

// dispatchRule renders and sends the reply, records the event, and on
// success updates usage counters. Must not be called while holding the
// conversation lock: the send may block on the transport.
func (e *Engine) dispatchRule(ctx context.Context, conversationID string, r rule.Rule, vars map[string]string, excerpt string, firedAt time.Time) dispatch.Event {
	text := template.Render(r.ResponseTemplate, vars)

	var event dispatch.Event
	if err := e.sender.Send(ctx, conversationID, text); err != nil {
		event = dispatch.NewFailedEvent(conversationID, r.ID, text, excerpt, err, firedAt)
		e.logger.Warn("outbound send failed",
			"conversation_id", conversationID, "rule_id", r.ID, "error", err)
	} else {
		event = dispatch.NewEvent(conversationID, r.ID, text, excerpt, dispatch.StatusSent, firedAt)
	}

	e.log.Append(event)
	e.metrics.recordDispatch(string(event.Status))

	if event.Status == dispatch.StatusSent {
		e.store.RecordFired(r.ID, firedAt)
		if err := e.pool.Submit(usageRecord{ruleID: r.ID, firedAt: firedAt}); err != nil {
			e.logger.Warn("usage persistence dropped",
				"rule_id", r.ID, "error", err)
		}
	}
	return event
}

// persistUsage is the worker pool processor for usage records.
func (e *Engine) persistUsage(ctx context.Context, rec usageRecord) error {
	if err := e.repo.IncrementUsage(ctx, rec.ruleID, rec.firedAt); err != nil {
		e.logger.Warn("usage increment failed", "rule_id", rec.ruleID, "error", err)
		return err
	}
	return nil
}

func (e *Engine) conversationLock(conversationID string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	lock, ok := e.convLocks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		e.convLocks[conversationID] = lock
	}
	return lock
}

func (e *Engine) rootContext() context.Context {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	if e.rootCtx != nil {
		return e.rootCtx
	}
	return context.Background()
}
