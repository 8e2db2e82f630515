package engine

import (
	"sync"
	"time"

	"github.com/convodesk/autoreply/rule"
)

// triggerKey identifies one armed trigger. At most one trigger may be armed
// per (conversation, rule) at a time.
type triggerKey struct {
	conversationID string
	ruleID         string
}

type armedTrigger struct {
	condition rule.TriggerCondition
	excerpt   string
	timer     Timer
}

// Cancellation describes one cancelled trigger: which rule was pending and
// the excerpt of the message that armed it.
type Cancellation struct {
	RuleID  string
	Excerpt string
}

// Scheduler owns the armed timers behind delayed and no-response triggers.
// A trigger is armed exactly once and ends in exactly one of two states:
// fired or cancelled. The race between an expiring timer and a cancellation
// is decided by whoever takes the scheduler lock first, which preserves
// arrival order.
type Scheduler struct {
	clock Clock

	mu    sync.Mutex
	armed map[triggerKey]*armedTrigger
}

// NewScheduler creates a scheduler using the given clock.
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = NewClock()
	}
	return &Scheduler{
		clock: clock,
		armed: make(map[triggerKey]*armedTrigger),
	}
}

// Arm schedules fire to run after delay unless the trigger is cancelled
// first. The excerpt of the arming message is kept so cancellation events
// can report it. Returns false without arming when a trigger for the same
// (conversation, rule) is already pending.
func (s *Scheduler) Arm(conversationID string, r rule.Rule, excerpt string, delay time.Duration, fire func(firedAt time.Time)) bool {
	key := triggerKey{conversationID: conversationID, ruleID: r.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.armed[key]; exists {
		return false
	}

	trigger := &armedTrigger{condition: r.TriggerCondition, excerpt: excerpt}
	trigger.timer = s.clock.AfterFunc(delay, func() {
		if !s.disarm(key, trigger) {
			// Cancelled between expiry and lock acquisition.
			return
		}
		fire(s.clock.Now())
	})
	s.armed[key] = trigger
	return true
}

// disarm removes the trigger if it is still the armed one. Reports whether
// the caller owns the fire transition.
func (s *Scheduler) disarm(key triggerKey, trigger *armedTrigger) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.armed[key]; !ok || current != trigger {
		return false
	}
	delete(s.armed, key)
	return true
}

// CancelNoResponse cancels every armed no-response trigger for a
// conversation, returning what was cancelled. Delayed immediate triggers
// are left alone: an agent reply does not suppress them.
func (s *Scheduler) CancelNoResponse(conversationID string) []Cancellation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cancelled []Cancellation
	for key, trigger := range s.armed {
		if key.conversationID != conversationID || trigger.condition != rule.TriggerNoResponse {
			continue
		}
		trigger.timer.Stop()
		delete(s.armed, key)
		cancelled = append(cancelled, Cancellation{RuleID: key.ruleID, Excerpt: trigger.excerpt})
	}
	return cancelled
}

// CancelAll stops every armed trigger. Used on shutdown; armed triggers do
// not survive a restart.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.armed)
	for key, trigger := range s.armed {
		trigger.timer.Stop()
		delete(s.armed, key)
	}
	return n
}

// ArmedCount returns the number of pending triggers.
func (s *Scheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}
