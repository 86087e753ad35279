// Package status serves the relay's health and progress over HTTP.
//
// Endpoints:
//   - GET /healthz: 200 while the broker link is up, 503 otherwise
//   - GET /status: JSON snapshot of the relay, broker and watcher
//
// The server is meant for local probes (systemd, container health checks)
// and binds to loopback by default.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/mqtt-relay/internal/relay"
	"github.com/nerrad567/mqtt-relay/internal/watcher"
)

// Server timeouts.
const (
	readTimeout             = 5 * time.Second
	writeTimeout            = 5 * time.Second
	idleTimeout             = 60 * time.Second
	gracefulShutdownTimeout = 5 * time.Second
)

// RelayStats provides the relay loop's counters.
type RelayStats interface {
	Stats() relay.Stats
}

// BrokerState reports whether the broker link is up.
type BrokerState interface {
	IsConnected() bool
}

// WatchState reports what the file watcher is subscribed to.
type WatchState interface {
	State() watcher.State
}

// Logger defines the logging interface for the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps holds the server's dependencies.
type Deps struct {
	Listen  string
	Path    string
	Topic   string
	Version string

	Relay   RelayStats
	Broker  BrokerState
	Watcher WatchState
	Logger  Logger
}

// Server is the status HTTP server.
type Server struct {
	deps     Deps
	server   *http.Server
	listener net.Listener
}

// New creates a status server. Nothing listens until Start is called.
func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Start binds the listen address and serves in the background.
//
// Returns:
//   - error: if the address cannot be bound
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.deps.Listen)
	if err != nil {
		return fmt.Errorf("status server listen on %s: %w", s.deps.Listen, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.deps.Logger.Info("status server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.deps.Logger.Info("status server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
