package autoreply

import (
	"context"
	"encoding/json"
	"time"

	"github.com/convodesk/autoreply/errors"
)

// Publisher publishes messages to a subject. *natsclient.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// OutboundReply is the wire form of an auto-reply leaving the engine.
type OutboundReply struct {
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// NATSSender delivers rendered replies by publishing them to a
// per-conversation subject under the configured prefix.
type NATSSender struct {
	publisher Publisher
	prefix    string
}

// NewNATSSender creates a sender publishing to prefix.<conversationID>.
func NewNATSSender(publisher Publisher, prefix string) *NATSSender {
	return &NATSSender{publisher: publisher, prefix: prefix}
}

// Send publishes the reply.
func (s *NATSSender) Send(ctx context.Context, conversationID, text string) error {
	reply := OutboundReply{
		ConversationID: conversationID,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return errors.WrapInvalid(err, "NATSSender", "Send", "marshal reply")
	}
	if err := s.publisher.Publish(ctx, s.prefix+"."+conversationID, data); err != nil {
		return errors.WrapTransient(err, "NATSSender", "Send", "publish reply")
	}
	return nil
}
