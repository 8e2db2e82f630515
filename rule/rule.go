// Package rule defines auto-reply rules and the matching, scoping, and
// priority-resolution logic that selects at most one rule for an inbound
// customer message.
package rule

import (
	"fmt"
	"time"

	"github.com/convodesk/autoreply/errors"
)

// MatchType determines how a rule's keywords are compared against message text.
type MatchType string

// Supported match types.
const (
	MatchAny   MatchType = "any"   // at least one keyword is a substring
	MatchAll   MatchType = "all"   // every keyword is a substring
	MatchExact MatchType = "exact" // trimmed text equals a keyword
	MatchRegex MatchType = "regex" // keywords are case-insensitive patterns
)

// Valid reports whether the match type is one of the supported values.
func (m MatchType) Valid() bool {
	switch m {
	case MatchAny, MatchAll, MatchExact, MatchRegex:
		return true
	}
	return false
}

// TriggerCondition determines when a matched rule actually causes a send.
type TriggerCondition string

// Supported trigger conditions.
const (
	// TriggerImmediate sends after the rule's delay (possibly zero).
	TriggerImmediate TriggerCondition = "immediate"
	// TriggerNoResponse sends only if no agent responds within the timeout.
	TriggerNoResponse TriggerCondition = "no_response"
	// TriggerSessionStart sends at most once per conversation.
	TriggerSessionStart TriggerCondition = "session_start"
)

// Valid reports whether the trigger condition is one of the supported values.
func (t TriggerCondition) Valid() bool {
	switch t {
	case TriggerImmediate, TriggerNoResponse, TriggerSessionStart:
		return true
	}
	return false
}

// ScopeType determines which conversations a rule may apply to.
type ScopeType string

// Supported scope types.
const (
	ScopeAll        ScopeType = "all"
	ScopeDepartment ScopeType = "department"
	ScopeAgent      ScopeType = "agent"
)

// Scope restricts a rule to a subset of conversations.
type Scope struct {
	Type ScopeType `json:"type"`
	// Values lists department names or agent IDs depending on Type;
	// unused for ScopeAll.
	Values []string `json:"values,omitempty"`
}

// Rule is an immutable auto-reply policy. Usage counters are tracked by the
// store, not mutated on the value; UsageCount and LastFiredAt are snapshots
// populated when the rule is read back out.
type Rule struct {
	ID                string           `json:"id"`
	Keywords          []string         `json:"keywords"`
	MatchType         MatchType        `json:"match_type"`
	ResponseTemplate  string           `json:"response_template"`
	Priority          int              `json:"priority"`
	Delay             time.Duration    `json:"delay"`
	TriggerCondition  TriggerCondition `json:"trigger_condition"`
	NoResponseTimeout time.Duration    `json:"no_response_timeout"`
	Scope             Scope            `json:"scope"`
	Enabled           bool             `json:"enabled"`

	// Usage snapshot, engine-maintained.
	UsageCount  int64     `json:"usage_count"`
	LastFiredAt time.Time `json:"last_fired_at"`
}

// Validate checks the structural invariants of a rule definition.
func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.WrapInvalid(errors.ErrRuleInvalid, "Rule", "Validate", "rule ID is required")
	}
	if len(r.Keywords) == 0 {
		return errors.WrapInvalid(errors.ErrNoKeywords, "Rule", "Validate",
			fmt.Sprintf("rule %s must have at least one keyword", r.ID))
	}
	for _, kw := range r.Keywords {
		if kw == "" {
			return errors.WrapInvalid(errors.ErrRuleInvalid, "Rule", "Validate",
				fmt.Sprintf("rule %s has an empty keyword", r.ID))
		}
	}
	if !r.MatchType.Valid() {
		return errors.WrapInvalid(errors.ErrUnknownMatchType, "Rule", "Validate",
			fmt.Sprintf("rule %s match type %q", r.ID, r.MatchType))
	}
	if !r.TriggerCondition.Valid() {
		return errors.WrapInvalid(errors.ErrUnknownTrigger, "Rule", "Validate",
			fmt.Sprintf("rule %s trigger condition %q", r.ID, r.TriggerCondition))
	}
	if r.Priority < 1 || r.Priority > 10 {
		return errors.WrapInvalid(errors.ErrRuleInvalid, "Rule", "Validate",
			fmt.Sprintf("rule %s priority %d out of range 1-10", r.ID, r.Priority))
	}
	if r.Delay < 0 {
		return errors.WrapInvalid(errors.ErrRuleInvalid, "Rule", "Validate",
			fmt.Sprintf("rule %s delay must be non-negative", r.ID))
	}
	if r.TriggerCondition == TriggerNoResponse && r.NoResponseTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrMissingTimeout, "Rule", "Validate",
			fmt.Sprintf("rule %s requires a no-response timeout", r.ID))
	}
	switch r.Scope.Type {
	case ScopeAll:
	case ScopeDepartment, ScopeAgent:
		if len(r.Scope.Values) == 0 {
			return errors.WrapInvalid(errors.ErrRuleInvalid, "Rule", "Validate",
				fmt.Sprintf("rule %s %s scope requires values", r.ID, r.Scope.Type))
		}
	default:
		return errors.WrapInvalid(errors.ErrRuleInvalid, "Rule", "Validate",
			fmt.Sprintf("rule %s scope type %q", r.ID, r.Scope.Type))
	}
	return nil
}

// UsageStats reports how often a rule has fired.
type UsageStats struct {
	RuleID      string    `json:"rule_id"`
	UsageCount  int64     `json:"usage_count"`
	LastFiredAt time.Time `json:"last_fired_at"`
}
