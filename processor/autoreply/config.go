package autoreply

import (
	"github.com/convodesk/autoreply/errors"
)

// Config holds the processor's NATS subject layout.
type Config struct {
	// InboundSubject carries customer and system messages entering
	// conversations.
	InboundSubject string `json:"inbound_subject"`

	// AgentSubject carries agent-reply notifications used to cancel
	// no-response triggers.
	AgentSubject string `json:"agent_subject"`

	// OutboundPrefix is the subject prefix for auto-replies; the
	// conversation ID is appended per send.
	OutboundPrefix string `json:"outbound_prefix"`

	// EventSubject receives dispatch events for downstream audit
	// consumers. Empty disables event publication.
	EventSubject string `json:"event_subject"`
}

// DefaultConfig returns the standard subject layout.
func DefaultConfig() Config {
	return Config{
		InboundSubject: "conversations.inbound",
		AgentSubject:   "conversations.agent",
		OutboundPrefix: "conversations.outbound",
		EventSubject:   "autoreply.events",
	}
}

// Validate checks that required subjects are present.
func (c Config) Validate() error {
	if c.InboundSubject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "inbound subject is required")
	}
	if c.AgentSubject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "agent subject is required")
	}
	if c.OutboundPrefix == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "outbound prefix is required")
	}
	return nil
}
