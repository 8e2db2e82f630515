package conversation

import (
	"context"
	"sync"
)

// MemoryProvider is an in-memory Provider. Conversations are created lazily
// on first write; reads of unknown conversations return an empty snapshot.
type MemoryProvider struct {
	mu            sync.RWMutex
	conversations map[string]*Context
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		conversations: make(map[string]*Context),
	}
}

// Put stores or replaces a conversation snapshot. The session-start flag of
// an existing conversation is preserved so seeding metadata cannot re-arm
// session-start rules.
func (p *MemoryProvider) Put(c Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.conversations[c.ConversationID]; ok && existing.SessionStartFired {
		c.SessionStartFired = true
	}
	p.conversations[c.ConversationID] = &c
}

// Context returns a copy of the stored snapshot, or an empty snapshot for
// unknown conversations.
func (p *MemoryProvider) Context(_ context.Context, conversationID string) (Context, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stored, ok := p.conversations[conversationID]
	if !ok {
		return Context{ConversationID: conversationID}, nil
	}

	snapshot := *stored
	if stored.CustomerVariables != nil {
		snapshot.CustomerVariables = make(map[string]string, len(stored.CustomerVariables))
		for k, v := range stored.CustomerVariables {
			snapshot.CustomerVariables[k] = v
		}
	}
	return snapshot, nil
}

// MarkSessionStart performs the atomic first-fire transition. Unknown
// conversations are created with the flag set.
func (p *MemoryProvider) MarkSessionStart(_ context.Context, conversationID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.conversations[conversationID]
	if !ok {
		p.conversations[conversationID] = &Context{
			ConversationID:    conversationID,
			SessionStartFired: true,
		}
		return true, nil
	}
	if stored.SessionStartFired {
		return false, nil
	}
	stored.SessionStartFired = true
	return true, nil
}
