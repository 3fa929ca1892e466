package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fortuna/crease/internal/ingest/cricbuzz"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048

	// Buffer size for outbound messages
	sendBufferSize = 32
)

// Controller receives the commands a widget can send.
type Controller interface {
	Select(detailURL string)
	Refresh()
}

// Client represents a WebSocket client connection
type Client struct {
	ID         string
	conn       *websocket.Conn
	Send       chan ServerMessage
	hub        *Hub
	controller Controller
	origin     string
	logger     *slog.Logger

	// Send is closed by the hub while the read pump may still be replying
	sendMu sync.Mutex
	closed bool
}

// NewClient creates a new client instance. origin is the site whose match
// pages the client may select.
func NewClient(id string, conn *websocket.Conn, hub *Hub, controller Controller, origin string, logger *slog.Logger) *Client {
	return &Client{
		ID:         id,
		conn:       conn,
		Send:       make(chan ServerMessage, sendBufferSize),
		hub:        hub,
		controller: controller,
		origin:     origin,
		logger:     logger.With("client_id", id),
	}
}

// ReadPump reads commands until the connection closes
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected close", "error", err)
			}
			return
		}
		c.handleClientMessage(msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Warn("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend sends a message to the client (non-blocking)
// Returns true if sent, false if buffer is full
func (c *Client) TrySend(msg ServerMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel once, ending the write pump
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSelect:
		if msg.URL != "" && !cricbuzz.IsDetailURL(c.origin, msg.URL) {
			c.logger.Warn("rejected select", "url", msg.URL)
			c.sendError("not a match page URL: " + msg.URL)
			return
		}
		c.logger.Info("client selected match", "url", msg.URL)
		c.controller.Select(msg.URL)
	case MessageTypeRefresh:
		c.controller.Refresh()
	case MessageTypePing:
		c.TrySend(ServerMessage{Type: MessageTypePong, Timestamp: time.Now()})
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func (c *Client) sendError(message string) {
	c.TrySend(ServerMessage{
		Type:      MessageTypeError,
		Payload:   map[string]string{"message": message},
		Timestamp: time.Now(),
	})
}
