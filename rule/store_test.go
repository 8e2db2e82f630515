package rule

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scopedRule(id string, scope Scope) Rule {
	r := testRule(MatchAny, "kw")
	r.ID = id
	r.Scope = scope
	return r
}

func TestStoreReloadAndCandidates(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Reload([]Rule{
		scopedRule("global", Scope{Type: ScopeAll}),
		scopedRule("billing-only", Scope{Type: ScopeDepartment, Values: []string{"billing"}}),
		scopedRule("agent-only", Scope{Type: ScopeAgent, Values: []string{"agent-1"}}),
	}))
	assert.Equal(t, 3, store.Len())

	ids := func(rules []Rule) []string {
		out := make([]string, len(rules))
		for i, r := range rules {
			out[i] = r.ID
		}
		return out
	}

	assert.ElementsMatch(t, []string{"global", "billing-only"},
		ids(store.Candidates("billing", "")))
	assert.ElementsMatch(t, []string{"global", "agent-only"},
		ids(store.Candidates("support", "agent-1")))
	assert.ElementsMatch(t, []string{"global"},
		ids(store.Candidates("support", "agent-2")))
}

func TestStoreDisabledRulesNeverSurface(t *testing.T) {
	store := NewStore()

	disabled := scopedRule("disabled", Scope{Type: ScopeAll})
	disabled.Enabled = false

	require.NoError(t, store.Reload([]Rule{disabled}))
	assert.Empty(t, store.Candidates("billing", "agent-1"))
}

func TestStoreReloadRejectsInvalidRule(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Reload([]Rule{scopedRule("ok", Scope{Type: ScopeAll})}))

	bad := scopedRule("bad", Scope{Type: ScopeAll})
	bad.Keywords = nil

	err := store.Reload([]Rule{scopedRule("ok", Scope{Type: ScopeAll}), bad})
	require.Error(t, err)
	// Failed reload leaves the previous snapshot intact.
	assert.Equal(t, 1, store.Len())
}

func TestStoreRemovedRulesNeverMatch(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Reload([]Rule{
		scopedRule("keep", Scope{Type: ScopeAll}),
		scopedRule("drop", Scope{Type: ScopeAll}),
	}))

	require.NoError(t, store.Reload([]Rule{scopedRule("keep", Scope{Type: ScopeAll})}))

	_, ok := store.Get("drop")
	assert.False(t, ok)
	assert.Len(t, store.Candidates("", ""), 1)
}

func TestStoreRecordFired(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Reload([]Rule{scopedRule("r1", Scope{Type: ScopeAll})}))

	firedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, store.RecordFired("r1", firedAt))

	stats, ok := store.UsageStats("r1")
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.UsageCount)
	assert.Equal(t, firedAt.UnixNano(), stats.LastFiredAt.UnixNano())

	// Usage snapshot shows up on candidates for priority tie-breaking.
	candidates := store.Candidates("", "")
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(1), candidates[0].UsageCount)

	assert.False(t, store.RecordFired("missing", firedAt))
}

func TestStoreRecordFiredConcurrent(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Reload([]Rule{scopedRule("hot", Scope{Type: ScopeAll})}))

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			store.RecordFired("hot", time.Now())
		}()
	}
	wg.Wait()

	stats, ok := store.UsageStats("hot")
	require.True(t, ok)
	assert.Equal(t, int64(goroutines), stats.UsageCount)
}

func TestStoreUsageSurvivesReload(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Reload([]Rule{scopedRule("r1", Scope{Type: ScopeAll})}))

	require.True(t, store.RecordFired("r1", time.Now()))
	require.NoError(t, store.Reload([]Rule{scopedRule("r1", Scope{Type: ScopeAll})}))

	stats, ok := store.UsageStats("r1")
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.UsageCount, "counters carry over for persisting rule IDs")
}

func TestStoreReloadSeedsUsageFromRepository(t *testing.T) {
	store := NewStore()

	r := scopedRule("r1", Scope{Type: ScopeAll})
	r.UsageCount = 42
	r.LastFiredAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Reload([]Rule{r}))

	stats, ok := store.UsageStats("r1")
	require.True(t, ok)
	assert.Equal(t, int64(42), stats.UsageCount, "persisted counters survive a restart")
	assert.Equal(t, r.LastFiredAt.UnixNano(), stats.LastFiredAt.UnixNano())

	// The seeded history shows up on candidates for the lastFiredAt tie-break.
	candidates := store.Candidates("", "")
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(42), candidates[0].UsageCount)
	assert.Equal(t, r.LastFiredAt.UnixNano(), candidates[0].LastFiredAt.UnixNano())
}

func TestStoreReloadKeepsCountersAheadOfRepository(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Reload([]Rule{scopedRule("r1", Scope{Type: ScopeAll})}))

	now := time.Now()
	for i := 0; i < 3; i++ {
		require.True(t, store.RecordFired("r1", now))
	}

	// The repository lags while async usage persistence is in flight.
	stale := scopedRule("r1", Scope{Type: ScopeAll})
	stale.UsageCount = 1
	stale.LastFiredAt = now.Add(-time.Hour)
	require.NoError(t, store.Reload([]Rule{stale}))

	stats, ok := store.UsageStats("r1")
	require.True(t, ok)
	assert.Equal(t, int64(3), stats.UsageCount, "reload never moves counters backwards")
	assert.Equal(t, now.UnixNano(), stats.LastFiredAt.UnixNano())
}
