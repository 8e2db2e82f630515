package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentEvent(conv, rule string) Event {
	return NewEvent(conv, rule, "hello", "hi there", StatusSent, time.Now())
}

func TestLogAppendAndQuery(t *testing.T) {
	log := NewLog(16)

	log.Append(sentEvent("conv-1", "rule-a"))
	log.Append(sentEvent("conv-2", "rule-a"))
	log.Append(NewEvent("conv-1", "rule-b", "", "hi there", StatusCancelled, time.Now()))

	assert.Equal(t, 3, log.Len())
	assert.Len(t, log.ByConversation("conv-1"), 2)
	assert.Len(t, log.ByRule("rule-a"), 2)
	assert.Len(t, log.ByStatus(StatusCancelled), 1)
	assert.Empty(t, log.ByConversation("conv-9"))
}

func TestLogOrdering(t *testing.T) {
	log := NewLog(16)
	for i := 0; i < 5; i++ {
		log.Append(sentEvent("conv-1", fmt.Sprintf("rule-%d", i)))
	}

	events := log.All()
	require.Len(t, events, 5)
	for i, e := range events {
		assert.Equal(t, fmt.Sprintf("rule-%d", i), e.RuleID)
	}
}

func TestLogOverwritesOldestWhenFull(t *testing.T) {
	log := NewLog(3)
	for i := 0; i < 5; i++ {
		log.Append(sentEvent("conv-1", fmt.Sprintf("rule-%d", i)))
	}

	events := log.All()
	require.Len(t, events, 3)
	assert.Equal(t, "rule-2", events[0].RuleID)
	assert.Equal(t, "rule-4", events[2].RuleID)
}

func TestLogConcurrentAppend(t *testing.T) {
	log := NewLog(1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				log.Append(sentEvent("conv-1", "rule-a"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, log.Len())
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	e := NewEvent("conv-1", "rule-a", "Hi Ada", "hello", StatusSent, at)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, StatusSent, e.Status)
	assert.Equal(t, "hello", e.TriggerExcerpt)
	assert.Empty(t, e.Error)

	other := NewEvent("conv-1", "rule-a", "Hi Ada", "hello", StatusSent, at)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestNewFailedEvent(t *testing.T) {
	e := NewFailedEvent("conv-1", "rule-a", "Hi", "hello", errors.New("connection reset"), time.Now())
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, "connection reset", e.Error)
}

func TestTriggerExcerptTruncated(t *testing.T) {
	long := strings.Repeat("refund ", 40)
	e := NewEvent("conv-1", "rule-a", "Hi", long, StatusSent, time.Now())

	assert.Len(t, []rune(e.TriggerExcerpt), ExcerptLimit)
	assert.Equal(t, string([]rune(long)[:ExcerptLimit]), e.TriggerExcerpt)

	short := NewEvent("conv-1", "rule-a", "Hi", "refund please", StatusSent, time.Now())
	assert.Equal(t, "refund please", short.TriggerExcerpt)
}
