package dispatch

import (
	"sync"
)

// DefaultLogCapacity bounds the in-memory event log when no capacity is
// given.
const DefaultLogCapacity = 4096

// Log is a bounded, append-only in-memory dispatch log. When full, the
// oldest events are overwritten. Durable audit storage is a downstream
// consumer's concern; the log exists for introspection and tests.
type Log struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewLog creates a log holding at most capacity events. Non-positive
// capacities fall back to DefaultLogCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{events: make([]Event, capacity)}
}

// Append records an event, overwriting the oldest when the log is full.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events[l.next] = e
	l.next++
	if l.next == len(l.events) {
		l.next = 0
		l.full = true
	}
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.events)
	}
	return l.next
}

// All returns the retained events in append order, oldest first.
func (l *Log) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// ByConversation returns retained events for one conversation, oldest first.
func (l *Log) ByConversation(conversationID string) []Event {
	return l.filter(func(e Event) bool { return e.ConversationID == conversationID })
}

// ByRule returns retained events for one rule, oldest first.
func (l *Log) ByRule(ruleID string) []Event {
	return l.filter(func(e Event) bool { return e.RuleID == ruleID })
}

// ByStatus returns retained events with the given status, oldest first.
func (l *Log) ByStatus(status Status) []Event {
	return l.filter(func(e Event) bool { return e.Status == status })
}

func (l *Log) filter(keep func(Event) bool) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, e := range l.snapshotLocked() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Log) snapshotLocked() []Event {
	if !l.full {
		out := make([]Event, l.next)
		copy(out, l.events[:l.next])
		return out
	}
	out := make([]Event, 0, len(l.events))
	out = append(out, l.events[l.next:]...)
	out = append(out, l.events[:l.next]...)
	return out
}
