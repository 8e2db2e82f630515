// Package autoreply provides the auto-reply rule matching and dispatch
// engine for conversation backends.
//
// # Overview
//
// The module evaluates inbound customer messages against a configurable set
// of auto-reply rules and dispatches at most one rendered reply per message.
// Rules combine keyword matching (any, all, exact, regex), conversation
// scoping (all, department, agent), a 1-10 priority, and a trigger protocol:
//
//   - immediate: reply right away, or after an optional delay
//   - no_response: reply only if no agent responds within a timeout
//   - session_start: reply at most once per conversation
//
// # Architecture
//
//	conversations.inbound ─┐
//	conversations.agent ───┼─▶ processor/autoreply ─▶ engine ─▶ conversations.outbound.<id>
//	                       │                            │
//	JetStream KV (rules) ──┘                            └─▶ autoreply.events
//
// The engine core is transport-free: rule storage is behind rule.Repository,
// conversation state behind conversation.Provider, and delivery behind
// engine.OutboundSender. The processor package binds those interfaces to
// NATS subjects and JetStream KV; cmd/autoreplyd wires the whole service
// together with Prometheus metrics and health endpoints.
//
// All decisions for one conversation are serialized, usage counters are
// atomic, and downstream sends never run under the serialization lock.
package autoreply
