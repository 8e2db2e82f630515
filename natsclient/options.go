package natsclient

import (
	"fmt"
	"log/slog"
	"time"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client) error

// WithName sets the client name reported to the NATS server.
func WithName(name string) ClientOption {
	return func(c *Client) error {
		if name == "" {
			return fmt.Errorf("client name cannot be empty")
		}
		c.clientName = name
		return nil
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithReconnectWait sets the delay between reconnection attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("reconnect wait must be positive")
		}
		c.reconnectWait = d
		return nil
	}
}

// WithMaxReconnects limits reconnection attempts; negative means unlimited.
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = n
		return nil
	}
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithReconnectHandler sets a callback invoked after each reconnect.
func WithReconnectHandler(fn func()) ClientOption {
	return func(c *Client) error {
		c.onReconnect = fn
		return nil
	}
}

// WithDisconnectHandler sets a callback invoked on disconnect.
func WithDisconnectHandler(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onDisconnect = fn
		return nil
	}
}
