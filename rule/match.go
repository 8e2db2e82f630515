package rule

import (
	"log/slog"
	"strings"
)

// Evaluator decides whether a rule matches a message text. It is stateless
// apart from its logger; compiled regex patterns are shared through the
// package-level pattern cache.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates a match evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger.With("component", "match-evaluator")}
}

// Matches reports whether the rule's keywords match the message text under
// the rule's match type. Disabled rules never match. A regex keyword that
// fails to compile is logged and skipped; it never aborts evaluation of the
// remaining keywords.
func (e *Evaluator) Matches(r Rule, text string) bool {
	if !r.Enabled {
		return false
	}

	switch r.MatchType {
	case MatchAny:
		return e.matchAny(r, text)
	case MatchAll:
		return e.matchAll(r, text)
	case MatchExact:
		return e.matchExact(r, text)
	case MatchRegex:
		return e.matchRegex(r, text)
	default:
		return false
	}
}

func (e *Evaluator) matchAny(r Rule, text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range r.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (e *Evaluator) matchAll(r Rule, text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range r.Keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

func (e *Evaluator) matchExact(r Rule, text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, kw := range r.Keywords {
		if strings.EqualFold(trimmed, kw) {
			return true
		}
	}
	return false
}

func (e *Evaluator) matchRegex(r Rule, text string) bool {
	for _, kw := range r.Keywords {
		re, err := compilePattern(kw)
		if err != nil {
			e.logger.Warn("Skipping invalid regex keyword",
				"rule_id", r.ID, "pattern", kw, "error", err)
			continue
		}
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
