package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/lockbot/internal/infrastructure/config"
	"github.com/nerrad567/lockbot/internal/infrastructure/logging"
)

type fakeCounters struct {
	users, owners, pending, sessions, workers int
}

func (f fakeCounters) Count() int      { return f.users }
func (f fakeCounters) OwnerCount() int { return f.owners }
func (f fakeCounters) Pending() int    { return f.pending }
func (f fakeCounters) Active() int     { return f.sessions }
func (f fakeCounters) Workers() int    { return f.workers }

// testServer creates a Server over fixed counters.
func testServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()

	counters := fakeCounters{users: 3, owners: 1, pending: 1, sessions: 2, workers: 4}
	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:   logging.Nop(),
		Users:    counters,
		Tokens:   counters,
		Sessions: counters,
		Workers:  counters,
		Version:  "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func serve(t *testing.T, srv *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, httptest.NewRequest(method, path, body))
	return w
}

func TestNew_Validation(t *testing.T) {
	counters := fakeCounters{}
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Users: counters, Tokens: counters, Sessions: counters}},
		{"no users", Deps{Logger: logging.Nop(), Tokens: counters, Sessions: counters}},
		{"no tokens", Deps{Logger: logging.Nop(), Users: counters, Sessions: counters}},
		{"no sessions", Deps{Logger: logging.Nop(), Users: counters, Tokens: counters}},
		{
			"webhook without path",
			Deps{Logger: logging.Nop(), Users: counters, Tokens: counters, Sessions: counters, Webhook: http.NotFoundHandler()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantCode   int
		wantStatus string
		wantComps  map[string]string
	}{
		{name: "no checks", wantCode: http.StatusOK, wantStatus: "ok"},
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "bridge", Check: func(context.Context) error { return nil }},
				{Name: "mqtt", Check: func(context.Context) error { return nil }},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantComps:  map[string]string{"bridge": "ok", "mqtt": "ok"},
		},
		{
			name: "one failing",
			checks: []HealthCheck{
				{Name: "bridge", Check: func(context.Context) error { return nil }},
				{Name: "influxdb", Check: func(context.Context) error { return errors.New("influxdb: not connected") }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantComps:  map[string]string{"bridge": "ok", "influxdb": "influxdb: not connected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, func(d *Deps) { d.Checks = tt.checks })
			w := serve(t, srv, http.MethodGet, "/api/v1/health", nil)

			if w.Code != tt.wantCode {
				t.Errorf("health status = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var resp HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Version != "test" {
				t.Errorf("version = %q, want test", resp.Version)
			}
			if len(resp.Components) != len(tt.wantComps) {
				t.Fatalf("components = %v, want %v", resp.Components, tt.wantComps)
			}
			for name, want := range tt.wantComps {
				if resp.Components[name] != want {
					t.Errorf("components[%s] = %q, want %q", name, resp.Components[name], want)
				}
			}
		})
	}
}

// ─── Status Endpoint Tests ─────────────────────────────────────────

func TestStatus(t *testing.T) {
	srv := testServer(t, nil)
	w := serve(t, srv, http.MethodGet, "/api/v1/status", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := StatusResponse{Users: 3, Owners: 1, PendingConfirmations: 1, AdminSessions: 2, Workers: 4}
	if resp.Users != want.Users || resp.Owners != want.Owners ||
		resp.PendingConfirmations != want.PendingConfirmations ||
		resp.AdminSessions != want.AdminSessions || resp.Workers != want.Workers {
		t.Errorf("status = %+v, want counts %+v", resp, want)
	}
	if resp.Timestamp == "" || resp.Version != "test" {
		t.Errorf("timestamp/version = %q/%q", resp.Timestamp, resp.Version)
	}
}

func TestStatus_WithoutWorkers(t *testing.T) {
	srv := testServer(t, func(d *Deps) { d.Workers = nil })
	w := serve(t, srv, http.MethodGet, "/api/v1/status", nil)

	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Workers != 0 {
		t.Errorf("workers = %d, want 0", resp.Workers)
	}
}

// ─── Metrics and Webhook Tests ─────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv := testServer(t, nil)

	// Generate one observation so the HTTP series exist.
	serve(t, srv, http.MethodGet, "/api/v1/status", nil)

	w := serve(t, srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "lockbot_http_requests_total") {
		t.Error("metrics output missing lockbot_http_requests_total")
	}
	if !strings.Contains(body, `route="/api/v1/status"`) {
		t.Error("metrics output missing route label for /api/v1/status")
	}
}

func TestWebhookRoute(t *testing.T) {
	var got string
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.WriteHeader(http.StatusOK)
	})
	srv := testServer(t, func(d *Deps) {
		d.Webhook = hook
		d.WebhookPath = "/telegram/webhook"
	})

	w := serve(t, srv, http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`))
	if w.Code != http.StatusOK {
		t.Errorf("webhook status = %d, want 200", w.Code)
	}
	if got != `{"update_id":1}` {
		t.Errorf("webhook body = %q", got)
	}

	w = serve(t, srv, http.MethodGet, "/telegram/webhook", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET webhook status = %d, want 405", w.Code)
	}
}

func TestWebhookRoute_AbsentInPollingMode(t *testing.T) {
	srv := testServer(t, nil)
	w := serve(t, srv, http.MethodPost, "/telegram/webhook", strings.NewReader("{}"))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	w := serve(t, testServer(t, nil), http.MethodGet, "/api/v1/health", nil)
	if requestID := w.Header().Get("X-Request-ID"); len(requestID) != 36 {
		t.Errorf("X-Request-ID = %q, want a UUID", requestID)
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	testServer(t, nil).buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestRecovery(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Webhook = http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
		d.WebhookPath = "/hook"
	})
	w := serve(t, srv, http.MethodPost, "/hook", strings.NewReader("{}"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	w := serve(t, testServer(t, nil), http.MethodGet, "/api/v1/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var resp Error
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", resp.Code, ErrCodeNotFound)
	}
}

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	srv := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/api/v1/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if _, err := http.Get("http://" + srv.Addr().String() + "/api/v1/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first := testServer(t, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer first.Close() //nolint:errcheck

	second := testServer(t, func(d *Deps) {
		d.Config.Port = first.Addr().(*net.TCPAddr).Port
	})
	if err := second.Start(context.Background()); err == nil {
		second.Close() //nolint:errcheck
		t.Error("Start() on a bound port should fail")
	}
}

func TestServer_CloseBeforeStart(t *testing.T) {
	if err := testServer(t, nil).Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
