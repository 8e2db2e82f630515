package autoreply

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convodesk/autoreply/conversation"
	"github.com/convodesk/autoreply/engine"
	"github.com/convodesk/autoreply/errors"
	"github.com/convodesk/autoreply/rule"
)

// fakeTransport records publishes and lets tests inject subscription
// traffic directly into the registered handlers.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]func(context.Context, []byte)
	messages map[string][][]byte
	pubErrs  map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string]func(context.Context, []byte)),
		messages: make(map[string][][]byte),
		pubErrs:  make(map[string]error),
	}
}

func (t *fakeTransport) Publish(_ context.Context, subject string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.pubErrs[subject]; err != nil {
		return err
	}
	t.messages[subject] = append(t.messages[subject], append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) failSubject(subject string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pubErrs[subject] = err
}

func (t *fakeTransport) Subscribe(_ context.Context, subject string, handler func(context.Context, []byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[subject] = handler
	return nil
}

func (t *fakeTransport) deliver(subject string, data []byte) {
	t.mu.Lock()
	handler := t.handlers[subject]
	t.mu.Unlock()
	handler(context.Background(), data)
}

func (t *fakeTransport) published(subject string) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messages[subject]
}

func testProcessor(t *testing.T, rules ...rule.Rule) (*Processor, *fakeTransport) {
	t.Helper()

	transport := newFakeTransport()
	cfg := DefaultConfig()

	eng := engine.New(
		rule.NewMemoryRepository(rules...),
		conversation.NewMemoryProvider(),
		NewNATSSender(transport, cfg.OutboundPrefix),
	)

	p := New(transport, eng, cfg)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() {
		_ = p.Stop(time.Second)
	})
	return p, transport
}

func refundRule() rule.Rule {
	return rule.Rule{
		ID:               "refund-ack",
		Keywords:         []string{"refund"},
		MatchType:        rule.MatchAny,
		ResponseTemplate: "We received your refund request.",
		Priority:         7,
		TriggerCondition: rule.TriggerImmediate,
		Scope:            rule.Scope{Type: rule.ScopeAll},
		Enabled:          true,
	}
}

func inboundPayload(t *testing.T, conversationID, text string, role engine.SenderRole) []byte {
	t.Helper()
	data, err := json.Marshal(engine.InboundMessage{
		ConversationID: conversationID,
		Text:           text,
		SenderRole:     role,
		Timestamp:      time.Now().UTC(),
	})
	require.NoError(t, err)
	return data
}

func TestProcessorDispatchesReply(t *testing.T) {
	p, transport := testProcessor(t, refundRule())

	transport.deliver(p.config.InboundSubject,
		inboundPayload(t, "conv-1", "I want a refund", engine.SenderCustomer))

	outbound := transport.published(p.config.OutboundPrefix + ".conv-1")
	require.Len(t, outbound, 1)

	var reply OutboundReply
	require.NoError(t, json.Unmarshal(outbound[0], &reply))
	assert.Equal(t, "conv-1", reply.ConversationID)
	assert.Equal(t, "We received your refund request.", reply.Text)

	// Dispatch event published for audit consumers.
	events := transport.published(p.config.EventSubject)
	require.Len(t, events, 1)
}

func TestProcessorIgnoresAgentAuthoredInbound(t *testing.T) {
	p, transport := testProcessor(t, refundRule())

	transport.deliver(p.config.InboundSubject,
		inboundPayload(t, "conv-1", "refund approved", engine.SenderAgent))

	assert.Empty(t, transport.published(p.config.OutboundPrefix+".conv-1"))
	assert.Empty(t, transport.published(p.config.EventSubject))
}

func TestProcessorAgentReplyCancelsTrigger(t *testing.T) {
	nudge := rule.Rule{
		ID:                "nudge",
		Keywords:          []string{"help"},
		MatchType:         rule.MatchAny,
		ResponseTemplate:  "An agent will be with you shortly.",
		Priority:          3,
		TriggerCondition:  rule.TriggerNoResponse,
		NoResponseTimeout: 90 * time.Second,
		Scope:             rule.Scope{Type: rule.ScopeAll},
		Enabled:           true,
	}
	p, transport := testProcessor(t, nudge)

	transport.deliver(p.config.InboundSubject,
		inboundPayload(t, "conv-1", "help me", engine.SenderCustomer))
	require.Equal(t, 1, p.Engine().Stats().ArmedTriggers)

	agentReply, err := json.Marshal(engine.AgentResponded{
		ConversationID: "conv-1",
		Timestamp:      time.Now().UTC(),
	})
	require.NoError(t, err)
	transport.deliver(p.config.AgentSubject, agentReply)

	assert.Zero(t, p.Engine().Stats().ArmedTriggers)
	assert.Empty(t, transport.published(p.config.OutboundPrefix+".conv-1"))
}

func TestProcessorMalformedPayload(t *testing.T) {
	p, transport := testProcessor(t, refundRule())

	transport.deliver(p.config.InboundSubject, []byte("{not json"))

	assert.Empty(t, transport.published(p.config.EventSubject))
	health := p.Health()
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.ErrorCount)
	assert.Contains(t, health.LastError, "decode inbound message")
}

func TestProcessorPublishFailureCountedOnce(t *testing.T) {
	p, transport := testProcessor(t, refundRule())
	transport.failSubject(p.config.EventSubject, errors.ErrSendFailed)

	transport.deliver(p.config.InboundSubject,
		inboundPayload(t, "conv-1", "refund please", engine.SenderCustomer))

	// The reply still goes out; only the audit publish fails.
	require.Len(t, transport.published(p.config.OutboundPrefix+".conv-1"), 1)

	health := p.Health()
	assert.Equal(t, 1, health.ErrorCount, "one publish failure is one handler error")
	assert.Contains(t, health.LastError, "publish dispatch event")

	flow := p.DataFlow()
	assert.InDelta(t, 1.0, flow.ErrorRate, 0.001, "publish failures feed the handler error rate")
}

func TestProcessorStartValidatesConfig(t *testing.T) {
	transport := newFakeTransport()
	eng := engine.New(
		rule.NewMemoryRepository(),
		conversation.NewMemoryProvider(),
		NewNATSSender(transport, "out"),
	)

	p := New(transport, eng, Config{})
	assert.Error(t, p.Start(context.Background()))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.InboundSubject = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.OutboundPrefix = ""
	assert.Error(t, cfg.Validate())

	// Event publication is optional.
	cfg = DefaultConfig()
	cfg.EventSubject = ""
	assert.NoError(t, cfg.Validate())
}
