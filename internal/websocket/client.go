package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxCommandSize = 512
	sendBuffer     = 64
)

// Client is one UI connection. It receives snapshot events and may ask for a
// refresh of a resource; all edits go through the HTTP API.
type Client struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	backend Backend
	logger  zerolog.Logger

	// ctx bounds refreshes started by this connection
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	send      chan []byte
	closed    bool
	closeOnce sync.Once
}

// NewClient creates a client for conn. backend may be nil, in which case no
// snapshots are replayed and refresh commands are rejected.
func NewClient(conn *websocket.Conn, hub *Hub, backend Backend) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &Client{
		id:      id,
		conn:    conn,
		hub:     hub,
		backend: backend,
		logger:  log.With().Str("component", "ws_client").Str("client_id", id).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		send:    make(chan []byte, sendBuffer),
	}
}

// ID returns the client's unique identifier
func (c *Client) ID() string {
	return c.id
}

// Send queues data without blocking. A full buffer counts as a dead client.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrClientClosed
	}
}

// Close stops the client. Messages already queued are still written before the
// connection closes. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
	return nil
}

// ReplaySnapshots queues every snapshot the backend already holds, so a UI
// joining late starts from the current state. Each event keeps the time it was
// first published; the UI keeps the newest event per resource.
func (c *Client) ReplaySnapshots() int {
	if c.backend == nil {
		return 0
	}
	sent := 0
	for _, evt := range c.backend.Snapshots() {
		data, err := evt.ToJSON()
		if err != nil {
			c.logger.Error().Err(err).Str("event_type", evt.Type).Msg("Failed to serialize snapshot")
			continue
		}
		if err := c.Send(data); err != nil {
			return sent
		}
		sent++
	}
	return sent
}

// ReadPump reads refresh commands until the connection drops.
// Run it in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxCommandSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket unexpected close")
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	cmd, err := ParseCommand(data)
	if err != nil {
		c.reject(cmd, err.Error())
		return
	}
	if c.backend == nil {
		c.reject(cmd, "refresh is not available")
		return
	}

	go func() {
		// ledger failures are broadcast as <entity>.failed by the backend
		if err := c.backend.Refresh(c.ctx, cmd.Resource); err != nil && c.ctx.Err() == nil {
			c.logger.Debug().Err(err).Str("resource", cmd.Resource).Msg("Refresh command failed")
			c.reject(cmd, err.Error())
		}
	}()
}

func (c *Client) reject(cmd Command, message string) {
	data, err := Rejected(cmd, message).ToJSON()
	if err != nil {
		return
	}
	_ = c.Send(data)
}

// WritePump writes queued events and keeps the connection alive with pings.
// Run it in its own goroutine; it owns closing the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket write error")
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
