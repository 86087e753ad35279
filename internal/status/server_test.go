package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/mqtt-relay/internal/relay"
	"github.com/nerrad567/mqtt-relay/internal/watcher"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fakeRelay struct{ stats relay.Stats }

func (f fakeRelay) Stats() relay.Stats { return f.stats }

type fakeBroker struct{ connected bool }

func (f fakeBroker) IsConnected() bool { return f.connected }

type fakeWatcher struct{ state watcher.State }

func (f fakeWatcher) State() watcher.State { return f.state }

func testServer(stats relay.Stats, connected bool) *Server {
	return New(Deps{
		Listen:  "127.0.0.1:0",
		Path:    "/run/value",
		Topic:   "sensors/value",
		Version: "1.2.3",
		Relay:   fakeRelay{stats: stats},
		Broker:  fakeBroker{connected: connected},
		Watcher: fakeWatcher{state: watcher.StateWatchingFile},
		Logger:  nopLogger{},
	})
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		want      int
	}{
		{"connected", true, http.StatusOK},
		{"disconnected", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(relay.Stats{}, tt.connected)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.want {
				t.Errorf("GET /healthz status = %d, want %d", rec.Code, tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := testServer(relay.Stats{
		State:           relay.StateRunning,
		EverConnected:   true,
		Publishes:       7,
		PublishFailures: 2,
		LastPublishAt:   last,
		LastTrigger:     relay.TriggerRefresh,
	}, true)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", rec.Code)
	}

	var got Response
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Path != "/run/value" || got.Topic != "sensors/value" || got.Version != "1.2.3" {
		t.Errorf("identity fields = %+v", got)
	}
	if got.State != "running" || got.WatchState != "watching_file" {
		t.Errorf("state = %q watch_state = %q", got.State, got.WatchState)
	}
	if !got.BrokerConnected || !got.EverConnected {
		t.Errorf("broker_connected = %v ever_connected = %v, want true/true", got.BrokerConnected, got.EverConnected)
	}
	if got.Publishes != 7 || got.PublishFailures != 2 || got.LastTrigger != "refresh" {
		t.Errorf("counters = %+v", got)
	}
	if got.LastPublishAt == nil || !got.LastPublishAt.Equal(last) {
		t.Errorf("last_publish_at = %v, want %v", got.LastPublishAt, last)
	}
}

func TestStatus_NoPublishYet(t *testing.T) {
	srv := testServer(relay.Stats{State: relay.StateConnecting}, false)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, ok := raw["last_publish_at"]; ok {
		t.Error("last_publish_at present before any publish")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(relay.Stats{}, true)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", rec.Code)
	}
}

func TestStartAndClose(t *testing.T) {
	srv := testServer(relay.Stats{}, true)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestStart_AddressInUse(t *testing.T) {
	first := testServer(relay.Stats{}, true)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer first.Close()

	second := testServer(relay.Stats{}, true)
	second.deps.Listen = first.Addr()
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Fatal("Start() on a bound address error = nil, want error")
	}
}

func TestCloseBeforeStart(t *testing.T) {
	if err := testServer(relay.Stats{}, true).Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}
