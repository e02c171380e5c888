package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w, "method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	if s.webhook != nil {
		r.Post(s.webhookPath, s.webhook.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
	})

	return r
}

// HealthResponse is the body of /api/v1/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth runs every component check. Any failure answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}
	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
	}

	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Components[c.Name] = err.Error()
			s.logger.Warn("health check failed", "component", c.Name, "error", err)
			continue
		}
		resp.Components[c.Name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// StatusResponse is the body of /api/v1/status. It carries counts only.
type StatusResponse struct {
	Timestamp            string `json:"timestamp"`
	Version              string `json:"version"`
	UptimeSeconds        int64  `json:"uptime_seconds"`
	Users                int    `json:"users"`
	Owners               int    `json:"owners"`
	PendingConfirmations int    `json:"pending_confirmations"`
	AdminSessions        int    `json:"admin_sessions"`
	Workers              int    `json:"workers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		Version:              s.version,
		UptimeSeconds:        int64(time.Since(s.startTime).Seconds()),
		Users:                s.users.Count(),
		Owners:               s.users.OwnerCount(),
		PendingConfirmations: s.tokens.Pending(),
		AdminSessions:        s.sessions.Active(),
	}
	if s.workers != nil {
		resp.Workers = s.workers.Workers()
	}
	writeJSON(w, http.StatusOK, resp)
}
