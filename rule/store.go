package rule

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/convodesk/autoreply/errors"
)

// storeEntry pairs an immutable rule value with its engine-maintained usage
// counters. Counters survive reloads of the same rule ID.
type storeEntry struct {
	rule      Rule
	usage     atomic.Int64
	lastFired atomic.Int64 // unix nanoseconds, 0 = never fired
}

func (e *storeEntry) snapshot() Rule {
	r := e.rule
	r.UsageCount = e.usage.Load()
	if ns := e.lastFired.Load(); ns > 0 {
		r.LastFiredAt = time.Unix(0, ns)
	}
	return r
}

// Store holds the current rule set with scope indexing, so candidate lookup
// for a conversation touches only globally scoped rules plus the rules
// indexed under its department and assigned agent. Rules are read-mostly;
// Reload replaces the whole snapshot.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*storeEntry
	global  []*storeEntry
	byDept  map[string][]*storeEntry
	byAgent map[string][]*storeEntry
}

// NewStore creates an empty rule store.
func NewStore() *Store {
	s := &Store{}
	s.resetIndexLocked()
	return s
}

func (s *Store) resetIndexLocked() {
	s.byID = make(map[string]*storeEntry)
	s.global = nil
	s.byDept = make(map[string][]*storeEntry)
	s.byAgent = make(map[string][]*storeEntry)
}

// Reload replaces the rule set. Every rule is validated first; a single
// invalid rule rejects the whole reload so a partial admin edit never
// half-applies. Usage counters are seeded from the repository snapshot on
// the incoming rules and carry over for rule IDs already in memory, so fire
// history survives both restarts and live reloads.
func (s *Store) Reload(rules []Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return errors.Wrap(err, "Store", "Reload", "validate rule "+r.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.byID
	s.resetIndexLocked()

	for _, r := range rules {
		entry := &storeEntry{rule: r}
		usage := r.UsageCount
		var lastFired int64
		if !r.LastFiredAt.IsZero() {
			lastFired = r.LastFiredAt.UnixNano()
		}
		if old, ok := previous[r.ID]; ok {
			// In-memory counters may be ahead of the repository while usage
			// persistence is still in flight; never move backwards.
			usage = max(usage, old.usage.Load())
			lastFired = max(lastFired, old.lastFired.Load())
		}
		entry.usage.Store(usage)
		entry.lastFired.Store(lastFired)
		s.byID[r.ID] = entry

		switch r.Scope.Type {
		case ScopeDepartment:
			for _, dept := range r.Scope.Values {
				s.byDept[dept] = append(s.byDept[dept], entry)
			}
		case ScopeAgent:
			for _, agent := range r.Scope.Values {
				s.byAgent[agent] = append(s.byAgent[agent], entry)
			}
		default:
			s.global = append(s.global, entry)
		}
	}

	return nil
}

// Candidates returns the enabled rules whose scope admits the given
// department and agent, with usage snapshots populated. Keyword matching is
// the caller's concern.
func (s *Store) Candidates(department, agentID string) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Rule
	appendEnabled := func(entries []*storeEntry) {
		for _, e := range entries {
			if e.rule.Enabled && e.rule.Scope.AppliesTo(department, agentID) {
				out = append(out, e.snapshot())
			}
		}
	}

	appendEnabled(s.global)
	if department != "" {
		appendEnabled(s.byDept[department])
	}
	if agentID != "" {
		appendEnabled(s.byAgent[agentID])
	}

	return out
}

// Get returns a rule snapshot by ID.
func (s *Store) Get(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byID[id]
	if !ok {
		return Rule{}, false
	}
	return entry.snapshot(), true
}

// Len returns the number of rules in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// RecordFired increments a rule's usage counter and advances its last-fired
// time. Safe under concurrent dispatches of the same rule.
func (s *Store) RecordFired(id string, at time.Time) bool {
	s.mu.RLock()
	entry, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return false
	}

	entry.usage.Add(1)

	// Advance lastFired monotonically; concurrent dispatches may race, the
	// latest timestamp wins.
	ns := at.UnixNano()
	for {
		current := entry.lastFired.Load()
		if ns <= current || entry.lastFired.CompareAndSwap(current, ns) {
			return true
		}
	}
}

// UsageStats returns the usage counters for a rule.
func (s *Store) UsageStats(id string) (UsageStats, bool) {
	s.mu.RLock()
	entry, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return UsageStats{}, false
	}

	stats := UsageStats{
		RuleID:     id,
		UsageCount: entry.usage.Load(),
	}
	if ns := entry.lastFired.Load(); ns > 0 {
		stats.LastFiredAt = time.Unix(0, ns)
	}
	return stats, true
}
