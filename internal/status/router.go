package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Response is the body of GET /status.
type Response struct {
	Path            string     `json:"path"`
	Topic           string     `json:"topic"`
	State           string     `json:"state"`
	BrokerConnected bool       `json:"broker_connected"`
	EverConnected   bool       `json:"ever_connected"`
	WatchState      string     `json:"watch_state"`
	Publishes       uint64     `json:"publishes"`
	PublishFailures uint64     `json:"publish_failures"`
	LastPublishAt   *time.Time `json:"last_publish_at,omitempty"`
	LastTrigger     string     `json:"last_trigger,omitempty"`
	Version         string     `json:"version"`
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

// handleHealth reports 200 while the broker link is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.deps.Broker.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "broker not connected",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns a snapshot of the relay.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := s.deps.Relay.Stats()

	resp := Response{
		Path:            s.deps.Path,
		Topic:           s.deps.Topic,
		State:           stats.State.String(),
		BrokerConnected: s.deps.Broker.IsConnected(),
		EverConnected:   stats.EverConnected,
		WatchState:      s.deps.Watcher.State().String(),
		Publishes:       stats.Publishes,
		PublishFailures: stats.PublishFailures,
		LastTrigger:     string(stats.LastTrigger),
		Version:         s.deps.Version,
	}
	if !stats.LastPublishAt.IsZero() {
		at := stats.LastPublishAt.UTC()
		resp.LastPublishAt = &at
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// loggingMiddleware logs each HTTP request at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.deps.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// recoveryMiddleware catches panics in handlers and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.deps.Logger.Error("panic recovered in HTTP handler",
					"error", err,
					"path", r.URL.Path,
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
