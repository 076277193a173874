package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kiyotaka-koji-0/Diligental/pkg/auth"
)

// Server owns the realtime engine: one registry instance threaded through
// the dispatcher and the session handlers, the persistence store, and the
// HTTP listener the WebSocket endpoints hang off.
type Server struct {
	store      Store
	registry   *Registry
	dispatcher *Dispatcher
	auth       *auth.Verifier
	config     Config
	log        zerolog.Logger
	metrics    *Metrics

	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
}

// NewServer creates a new server instance
func NewServer(store Store, verifier *auth.Verifier, config Config, log zerolog.Logger) *Server {
	registry := NewRegistry()

	return &Server{
		store:      store,
		registry:   registry,
		dispatcher: NewDispatcher(registry, log),
		auth:       verifier,
		config:     config,
		log:        log.With().Str("component", "server").Logger(),
	}
}

// SetMetrics attaches metrics to the server and its dispatcher
func (s *Server) SetMetrics(metrics *Metrics) {
	s.metrics = metrics
	s.dispatcher.SetMetrics(metrics)
}

// Registry exposes the connection registry (used by tests and diagnostics).
func (s *Server) Registry() *Registry {
	return s.registry
}

// Dispatcher exposes the dispatcher, letting collaborators outside the
// session loop (for example the REST service announcing system events)
// deliver into live connections.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Router builds the HTTP routes: the two WebSocket endpoints plus health
// and metrics.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Notifications first so the literal segment is not swallowed by the
	// channel id pattern.
	r.Get("/ws/notifications/{token}", s.HandleNotificationWS)
	r.Get("/ws/{channelID}/{token}", s.HandleChannelWS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start begins listening for connections. Non-blocking; errors from the
// accept loop are logged.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Server.HTTPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.Router()}
	s.mu.Unlock()

	s.log.Info().Str("addr", listener.Addr().String()).Msg("listening")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http server stopped")
		}
	}()

	return nil
}

// Addr returns the bound listen address, useful when port 0 was configured.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server: no new connections, then every live
// connection is closed so its session loop unwinds and deregisters.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil && err != context.DeadlineExceeded {
			s.log.Warn().Err(err).Msg("http shutdown")
		}
	}

	for _, conn := range s.registry.All() {
		conn.Close()
	}

	return s.store.Close()
}
