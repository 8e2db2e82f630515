package rule

import (
	"context"
	"sync"
	"time"

	"github.com/convodesk/autoreply/errors"
)

// Repository is the engine's narrow view of rule persistence: read access to
// the current rule set plus a write path used only for usage-counter
// increments. Administrative create/update/delete is entirely external.
type Repository interface {
	// List returns all rules, including disabled ones.
	List(ctx context.Context) ([]Rule, error)

	// IncrementUsage records one successful dispatch for a rule.
	IncrementUsage(ctx context.Context, ruleID string, firedAt time.Time) error
}

// MemoryRepository is an in-memory Repository used in tests and for
// file-seeded deployments without a KV bucket.
type MemoryRepository struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewMemoryRepository creates a repository seeded with the given rules.
func NewMemoryRepository(rules ...Rule) *MemoryRepository {
	repo := &MemoryRepository{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		repo.rules[r.ID] = r
	}
	return repo
}

// List returns all rules.
func (m *MemoryRepository) List(_ context.Context) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	return out, nil
}

// IncrementUsage records a dispatch against the stored rule.
func (m *MemoryRepository) IncrementUsage(_ context.Context, ruleID string, firedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[ruleID]
	if !ok {
		return errors.WrapInvalid(errors.ErrRuleNotFound, "MemoryRepository", "IncrementUsage", "lookup rule "+ruleID)
	}
	r.UsageCount++
	if firedAt.After(r.LastFiredAt) {
		r.LastFiredAt = firedAt
	}
	m.rules[ruleID] = r
	return nil
}

// Put stores or replaces a rule. Seeding helper for the admin side of tests.
func (m *MemoryRepository) Put(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = r
}

// Delete removes a rule.
func (m *MemoryRepository) Delete(ruleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, ruleID)
}
