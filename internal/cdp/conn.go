// Package cdp is a Chrome DevTools Protocol client: it correlates command
// responses with their callers and queues events in wire order.
package cdp

import (
	"context"

	"github.com/coder/websocket"
)

// Conn defines the interface for a WebSocket connection.
// *websocket.Conn satisfies it; tests use mock connections.
type Conn interface {
	// Read reads a message from the connection.
	// Returns message type, payload, and any error.
	Read(ctx context.Context) (websocket.MessageType, []byte, error)

	// Write writes a message to the connection.
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error

	// Close closes the connection with a status code and reason.
	Close(code websocket.StatusCode, reason string) error
}
