// Package dispatch records the outcome of every auto-reply decision as an
// immutable event stream: sent replies, failed sends, and cancelled timers.
package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Status is the terminal outcome of a dispatch attempt.
type Status string

// Dispatch outcomes.
const (
	// StatusSent means the reply reached the outbound sender successfully.
	StatusSent Status = "SENT"
	// StatusFailed means the outbound send returned an error. Failed
	// dispatches are recorded, never retried.
	StatusFailed Status = "FAILED"
	// StatusCancelled means an armed trigger was cancelled before firing,
	// recorded for audit.
	StatusCancelled Status = "CANCELLED"
)

// ExcerptLimit bounds the trigger-message excerpt carried on events.
const ExcerptLimit = 140

// Event is one immutable dispatch record. TriggerExcerpt holds the start of
// the customer message that caused the rule to match, also for events that
// resolve later (delayed fires, cancellations).
type Event struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	RuleID         string    `json:"rule_id"`
	RenderedText   string    `json:"rendered_text,omitempty"`
	TriggerExcerpt string    `json:"trigger_excerpt,omitempty"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Excerpt truncates the triggering message text to ExcerptLimit runes.
func Excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= ExcerptLimit {
		return text
	}
	return string(runes[:ExcerptLimit])
}

// NewEvent creates a dispatch event with a fresh ID.
func NewEvent(conversationID, ruleID, renderedText, triggerExcerpt string, status Status, at time.Time) Event {
	return Event{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		RuleID:         ruleID,
		RenderedText:   renderedText,
		TriggerExcerpt: Excerpt(triggerExcerpt),
		Status:         status,
		Timestamp:      at,
	}
}

// NewFailedEvent creates a FAILED event carrying the send error.
func NewFailedEvent(conversationID, ruleID, renderedText, triggerExcerpt string, sendErr error, at time.Time) Event {
	e := NewEvent(conversationID, ruleID, renderedText, triggerExcerpt, StatusFailed, at)
	if sendErr != nil {
		e.Error = sendErr.Error()
	}
	return e
}
