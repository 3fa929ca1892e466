package websocket

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     IsLocalOrigin,
}

// IsLocalOrigin admits the widget and other local pages. Browsers on other
// hosts must not be able to retarget the poller.
func IsLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Server upgrades HTTP requests and attaches the connections to the hub
type Server struct {
	hub        *Hub
	controller Controller
	origin     string
	logger     *slog.Logger
}

// NewServer creates a new WebSocket server. Clients may only select match
// pages on origin.
func NewServer(hub *Hub, controller Controller, origin string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:        hub,
		controller: controller,
		origin:     origin,
		logger:     logger.With("component", "ws_server"),
	}
}

// ServeHTTP handles WebSocket connections for live updates
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	client := NewClient(uuid.NewString(), conn, s.hub, s.controller, s.origin, s.logger)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// HandleHealth returns WebSocket server health status
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}
