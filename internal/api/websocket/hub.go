// Package websocket pushes poll results to widget processes and accepts
// selection changes from them.
package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fortuna/crease/internal/match"
	"github.com/fortuna/crease/internal/metrics"
)

// Message types
const (
	MessageTypeListing = "listing"
	MessageTypeDetail  = "detail"
	MessageTypeError   = "error"
	MessageTypePong    = "pong"

	MessageTypeSelect  = "select"
	MessageTypeRefresh = "refresh"
	MessageTypePing    = "ping"
)

// ServerMessage is pushed to clients
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is received from clients
type ClientMessage struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
// It is a publisher.Listener.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan ServerMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Last listing and detail, replayed to clients as they connect
	latestMu        sync.Mutex
	latestListing   *ServerMessage
	latestDetail    *ServerMessage
	latestDetailURL string
	isCurrent       func(detailURL string) bool

	logger *slog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan ServerMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "ws_hub"),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a message for every client, dropping it when the queue is full
func (h *Hub) Broadcast(msg ServerMessage) {
	select {
	case h.broadcast <- msg:
	default:
		metrics.EventsDropped.WithLabelValues(msg.Type, "ws_buffer_full").Inc()
		h.logger.Warn("broadcast buffer full, dropping message", "type", msg.Type)
	}
}

// SetDetailGuard installs the check that decides whether the cached detail
// still belongs to the selected match when a client connects.
func (h *Hub) SetDetailGuard(isCurrent func(detailURL string) bool) {
	h.latestMu.Lock()
	defer h.latestMu.Unlock()
	h.isCurrent = isCurrent
}

// OnListingUpdated broadcasts a listing
func (h *Hub) OnListingUpdated(ctx context.Context, summaries []match.MatchSummary) {
	msg := ServerMessage{Type: MessageTypeListing, Payload: summaries, Timestamp: time.Now()}
	h.latestMu.Lock()
	h.latestListing = &msg
	h.latestMu.Unlock()
	h.Broadcast(msg)
}

// OnDetailUpdated broadcasts a detail
func (h *Hub) OnDetailUpdated(ctx context.Context, detail match.MatchDetail) {
	msg := ServerMessage{Type: MessageTypeDetail, Payload: detail, Timestamp: time.Now()}
	h.latestMu.Lock()
	h.latestDetail = &msg
	h.latestDetailURL = detail.DetailURL
	h.latestMu.Unlock()
	h.Broadcast(msg)
}

// OnFetchError broadcasts a failure notice
func (h *Hub) OnFetchError(ctx context.Context, failure match.FetchFailure) {
	h.Broadcast(ServerMessage{Type: MessageTypeError, Payload: failure, Timestamp: time.Now()})
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.clientsMu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	h.logger.Info("client connected", "client_id", c.ID, "clients", count)

	h.latestMu.Lock()
	replay := []*ServerMessage{h.latestListing}
	if h.latestDetail != nil && (h.isCurrent == nil || h.isCurrent(h.latestDetailURL)) {
		replay = append(replay, h.latestDetail)
	}
	h.latestMu.Unlock()
	for _, msg := range replay {
		if msg != nil {
			c.TrySend(*msg)
		}
	}
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.closeSend()
	}
	count := len(h.clients)
	h.clientsMu.Unlock()

	if ok {
		metrics.WebSocketClients.Set(float64(count))
		h.logger.Info("client disconnected", "client_id", c.ID, "clients", count)
	}
}

func (h *Hub) broadcastMessage(msg ServerMessage) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if !c.TrySend(msg) {
			// Too slow to keep up; drop the client rather than the stream.
			h.logger.Warn("client buffer full, disconnecting", "client_id", c.ID)
			h.unregisterClient(c)
		}
	}
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	close(h.done)

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.Info("shutting down hub", "clients", len(h.clients))
	for c := range h.clients {
		c.closeSend()
		delete(h.clients, c)
	}
	metrics.WebSocketClients.Set(0)
}
