package rest

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/crease/internal/api/websocket"
	"github.com/fortuna/crease/internal/metrics"
)

// Server represents the local API server
type Server struct {
	server  *http.Server
	handler *Handler
}

// NewServer creates the API server. wsServer may be nil to disable push.
func NewServer(host, port string, handler *Handler, wsServer *websocket.Server) *Server {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")
	api.HandleFunc("/tooltip", handler.GetTooltip).Methods("GET")
	api.HandleFunc("/selected", handler.GetSelected).Methods("GET")
	api.HandleFunc("/select", handler.SelectMatch).Methods("POST", "OPTIONS")
	api.HandleFunc("/refresh", handler.RefreshListing).Methods("POST", "OPTIONS")
	api.HandleFunc("/status", handler.GetStatus).Methods("GET")

	// Push channel
	if wsServer != nil {
		router.Handle("/ws", wsServer).Methods("GET")
		router.HandleFunc("/ws/health", wsServer.HandleHealth).Methods("GET")
	}

	return &Server{
		handler: handler,
		server: &http.Server{
			Addr:              net.JoinHostPort(host, port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
