// Package natsclient manages the NATS connection used by the autoreply
// service for event transport and JetStream KV rule storage.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/convodesk/autoreply/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Client wraps a NATS connection with lifecycle management and
// subscription tracking.
type Client struct {
	url    string
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream
	subs []*nats.Subscription

	// Connection options
	clientName    string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	// Callbacks
	onReconnect  func()
	onDisconnect func(error)

	mu     sync.RWMutex
	status ConnectionStatus
	closed bool
}

// NewClient creates a NATS client for the given server URL.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:           url,
		logger:        slog.Default().With("component", "natsclient"),
		clientName:    "autoreply",
		maxReconnects: -1, // infinite by default
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
		status:        StatusDisconnected,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	return c, nil
}

// URL returns the NATS server URL.
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsHealthy reports whether the client holds a live connection.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Connect establishes the NATS connection and JetStream context. The
// handshake is synchronous in nats.go, so the context is unused.
func (c *Client) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Client", "Connect", "check connection state")
	}

	c.status = StatusConnecting

	conn, err := nats.Connect(c.url,
		nats.Name(c.clientName),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.ReconnectHandler(func(*nats.Conn) {
			c.mu.Lock()
			c.status = StatusConnected
			c.mu.Unlock()
			c.logger.Info("NATS reconnected")
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.mu.Lock()
			c.status = StatusReconnecting
			c.mu.Unlock()
			c.logger.Warn("NATS disconnected", "error", err)
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
		}),
	)
	if err != nil {
		c.status = StatusDisconnected
		return errors.WrapTransient(err, "Client", "Connect", "connect to NATS")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		c.status = StatusDisconnected
		return errors.WrapFatal(err, "Client", "Connect", "create JetStream context")
	}

	c.conn = conn
	c.js = js
	c.status = StatusConnected
	c.logger.Info("Connected to NATS", "url", c.url)
	return nil
}

// Publish publishes data to a subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish", "check connection")
	}

	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish to "+subject)
	}
	return nil
}

// Subscribe subscribes to a subject. The handler receives the message data;
// the subscription is tracked and drained on Close.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Subscribe", "check connection")
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(ctx, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(errors.ErrSubscriptionFailed, "Client", "Subscribe", "subscribe to "+subject)
	}

	c.subs = append(c.subs, sub)
	c.logger.Debug("Subscribed", "subject", subject)
	return nil
}

// JetStream returns the JetStream context, or nil before Connect.
func (c *Client) JetStream() jetstream.JetStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.js
}

// KeyValue returns a handle to a JetStream KV bucket, creating it when absent.
func (c *Client) KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Client", "KeyValue", "check JetStream context")
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "KeyValue", "create bucket "+bucket)
	}
	return kv, nil
}

// Close drains subscriptions and closes the connection. Safe to call once.
func (c *Client) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.logger.Warn("Failed to drain subscription", "subject", sub.Subject, "error", err)
		}
	}
	c.subs = nil

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.js = nil
	c.status = StatusDisconnected

	c.logger.Info("NATS client closed")
	return nil
}
