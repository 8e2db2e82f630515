package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderContext(t *testing.T) {
	p := NewMemoryProvider()
	p.Put(Context{
		ConversationID:    "conv-1",
		Department:        "billing",
		AssignedAgentID:   "agent-1",
		CustomerVariables: map[string]string{"name": "Ada"},
	})

	got, err := p.Context(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "billing", got.Department)
	assert.Equal(t, "agent-1", got.AssignedAgentID)
	assert.Equal(t, "Ada", got.CustomerVariables["name"])

	// Returned snapshot is a copy; mutating it must not leak back.
	got.CustomerVariables["name"] = "Eve"
	again, err := p.Context(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.CustomerVariables["name"])
}

func TestMemoryProviderUnknownConversation(t *testing.T) {
	p := NewMemoryProvider()

	got, err := p.Context(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "missing", got.ConversationID)
	assert.Empty(t, got.Department)
	assert.False(t, got.SessionStartFired)
}

func TestMarkSessionStartOnce(t *testing.T) {
	p := NewMemoryProvider()
	p.Put(Context{ConversationID: "conv-1"})

	first, err := p.MarkSessionStart(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := p.MarkSessionStart(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestMarkSessionStartConcurrent(t *testing.T) {
	p := NewMemoryProvider()

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := p.MarkSessionStart(context.Background(), "conv-1")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load(), "exactly one caller observes the transition")
}

func TestPutPreservesSessionStartFlag(t *testing.T) {
	p := NewMemoryProvider()

	_, err := p.MarkSessionStart(context.Background(), "conv-1")
	require.NoError(t, err)

	p.Put(Context{ConversationID: "conv-1", Department: "sales"})

	got, err := p.Context(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, got.SessionStartFired)
	assert.Equal(t, "sales", got.Department)
}
