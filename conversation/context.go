// Package conversation provides read access to conversation state the
// engine needs for rule evaluation: department routing, agent assignment,
// customer variables for template rendering, and the once-per-conversation
// session-start flag.
package conversation

import "context"

// Context is a snapshot of a conversation at evaluation time.
type Context struct {
	ConversationID  string `json:"conversation_id"`
	Department      string `json:"department,omitempty"`
	AssignedAgentID string `json:"assigned_agent_id,omitempty"`

	// CustomerVariables feeds template rendering ({{name}} etc).
	CustomerVariables map[string]string `json:"customer_variables,omitempty"`
	// SessionStartFired is true once a session-start rule has ever fired
	// for this conversation.
	SessionStartFired bool `json:"session_start_fired"`
}

// Provider supplies conversation snapshots to the engine. Implementations
// must make MarkSessionStart an atomic check-and-set: exactly one caller
// observes the false→true transition.
type Provider interface {
	// Context returns the current snapshot for a conversation. Unknown
	// conversations yield an empty snapshot, not an error, so globally
	// scoped rules still evaluate.
	Context(ctx context.Context, conversationID string) (Context, error)

	// MarkSessionStart sets the session-start flag and reports whether
	// this call performed the transition. Returns false when the flag
	// was already set.
	MarkSessionStart(ctx context.Context, conversationID string) (bool, error)
}
