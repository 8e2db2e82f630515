package rule

import "sort"

// Resolve selects exactly one winning rule from the candidate set, or none.
// Ordering: priority descending, then most recent LastFiredAt descending
// (never-fired rules sort after fired ones on a priority tie, favoring rules
// with demonstrated relevance), then rule ID ascending so selection is fully
// deterministic regardless of input order.
func Resolve(candidates []Rule) (Rule, bool) {
	if len(candidates) == 0 {
		return Rule{}, false
	}

	sorted := make([]Rule, len(candidates))
	copy(sorted, candidates)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.LastFiredAt.Equal(b.LastFiredAt) {
			return a.LastFiredAt.After(b.LastFiredAt)
		}
		return a.ID < b.ID
	})

	return sorted[0], true
}
