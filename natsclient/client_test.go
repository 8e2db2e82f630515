package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
}

func TestNewClientOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"empty name", WithName("")},
		{"nil logger", WithLogger(nil)},
		{"zero reconnect wait", WithReconnectWait(0)},
		{"zero timeout", WithTimeout(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestNewClientOptionsApplied(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithName("autoreply-test"),
		WithReconnectWait(time.Second),
		WithMaxReconnects(3),
		WithTimeout(2*time.Second),
	)
	require.NoError(t, err)
	assert.Equal(t, "autoreply-test", c.clientName)
	assert.Equal(t, time.Second, c.reconnectWait)
	assert.Equal(t, 3, c.maxReconnects)
}

func TestPublishWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = c.Publish(context.Background(), "conversations.outbound", []byte("{}"))
	assert.Error(t, err)
}

func TestSubscribeWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = c.Subscribe(context.Background(), "conversations.inbound", func(context.Context, []byte) {})
	assert.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}
