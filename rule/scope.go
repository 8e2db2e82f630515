package rule

// AppliesTo reports whether the scope admits a conversation with the given
// department and assigned agent. Scope and keyword matching are independent
// predicates; both must hold for a rule to be a candidate.
func (s Scope) AppliesTo(department, agentID string) bool {
	switch s.Type {
	case ScopeAll:
		return true
	case ScopeDepartment:
		return contains(s.Values, department)
	case ScopeAgent:
		return contains(s.Values, agentID)
	default:
		return false
	}
}

func contains(values []string, v string) bool {
	if v == "" {
		return false
	}
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
