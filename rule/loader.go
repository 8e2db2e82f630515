package rule

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/convodesk/autoreply/errors"
)

// Definition is the JSON wire form of a rule. Durations are expressed as
// Go duration strings ("2s", "90s", "5m") in definition files and in the
// KV bucket. The usage fields are engine-written; admin tools normally omit
// them and the engine reads them back so fire history survives restarts.
type Definition struct {
	ID                string    `json:"id"`
	Keywords          []string  `json:"keywords"`
	MatchType         string    `json:"match_type"`
	ResponseTemplate  string    `json:"response_template"`
	Priority          int       `json:"priority"`
	Delay             string    `json:"delay,omitempty"`
	TriggerCondition  string    `json:"trigger_condition"`
	NoResponseTimeout string    `json:"no_response_timeout,omitempty"`
	Scope             Scope     `json:"scope"`
	Enabled           bool      `json:"enabled"`
	UsageCount        int64     `json:"usage_count,omitempty"`
	LastFiredAt       time.Time `json:"last_fired_at,omitzero"`
}

// Rule converts the definition into a validated Rule value.
func (d Definition) Rule() (Rule, error) {
	r := Rule{
		ID:               d.ID,
		Keywords:         d.Keywords,
		MatchType:        MatchType(d.MatchType),
		ResponseTemplate: d.ResponseTemplate,
		Priority:         d.Priority,
		TriggerCondition: TriggerCondition(d.TriggerCondition),
		Scope:            d.Scope,
		Enabled:          d.Enabled,
		UsageCount:       d.UsageCount,
		LastFiredAt:      d.LastFiredAt,
	}
	if r.Scope.Type == "" {
		r.Scope.Type = ScopeAll
	}

	if d.Delay != "" {
		delay, err := time.ParseDuration(d.Delay)
		if err != nil {
			return Rule{}, errors.WrapInvalid(err, "Definition", "Rule",
				fmt.Sprintf("parse delay for rule %s", d.ID))
		}
		r.Delay = delay
	}

	if d.NoResponseTimeout != "" {
		timeout, err := time.ParseDuration(d.NoResponseTimeout)
		if err != nil {
			return Rule{}, errors.WrapInvalid(err, "Definition", "Rule",
				fmt.Sprintf("parse no-response timeout for rule %s", d.ID))
		}
		r.NoResponseTimeout = timeout
	}

	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// DefinitionFromRule converts a rule back to its wire form.
func DefinitionFromRule(r Rule) Definition {
	d := Definition{
		ID:               r.ID,
		Keywords:         r.Keywords,
		MatchType:        string(r.MatchType),
		ResponseTemplate: r.ResponseTemplate,
		Priority:         r.Priority,
		TriggerCondition: string(r.TriggerCondition),
		Scope:            r.Scope,
		Enabled:          r.Enabled,
		UsageCount:       r.UsageCount,
		LastFiredAt:      r.LastFiredAt,
	}
	if r.Delay > 0 {
		d.Delay = r.Delay.String()
	}
	if r.NoResponseTimeout > 0 {
		d.NoResponseTimeout = r.NoResponseTimeout.String()
	}
	return d
}

// LoadFile reads a JSON rule definition file: either a top-level array of
// definitions or an object with a "rules" array.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "rule", "LoadFile", "read "+path)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions decodes JSON rule definitions and converts them into
// validated rules. Duplicate IDs are rejected.
func ParseDefinitions(data []byte) ([]Rule, error) {
	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		var wrapper struct {
			Rules []Definition `json:"rules"`
		}
		if err2 := json.Unmarshal(data, &wrapper); err2 != nil {
			return nil, errors.WrapInvalid(errors.ErrParsingFailed, "rule", "ParseDefinitions", "decode definitions")
		}
		defs = wrapper.Rules
	}

	seen := make(map[string]bool, len(defs))
	rules := make([]Rule, 0, len(defs))
	for _, d := range defs {
		r, err := d.Rule()
		if err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, errors.WrapInvalid(errors.ErrRuleInvalid, "rule", "ParseDefinitions",
				fmt.Sprintf("duplicate rule ID %s", r.ID))
		}
		seen[r.ID] = true
		rules = append(rules, r)
	}
	return rules, nil
}
