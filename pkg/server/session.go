package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kiyotaka-koji-0/Diligental/pkg/database"
)

// Client is one live WebSocket connection plus the identity it authenticated
// as. Channel sessions also carry the channel they are bound to; a
// notification session has no channel. Writes are synchronized so the
// dispatcher and the session's own loop never interleave partial frames.
type Client struct {
	ws      *websocket.Conn
	user    *database.User
	channel *uuid.UUID // nil for notification-only sessions

	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

// NewClient wraps an upgraded connection with its authenticated identity.
func NewClient(ws *websocket.Conn, user *database.User, channel *uuid.UUID, writeTimeout time.Duration) *Client {
	return &Client{
		ws:           ws,
		user:         user,
		channel:      channel,
		writeTimeout: writeTimeout,
	}
}

// User returns the identity the connection authenticated as.
func (c *Client) User() *database.User {
	return c.user
}

// Channel returns the channel a channel session is bound to, or nil.
func (c *Client) Channel() *uuid.UUID {
	return c.channel
}

// Send writes one text frame. Safe for concurrent use.
func (c *Client) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying transport. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// ReadMessage reads the next frame from the transport.
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}
