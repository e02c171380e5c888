// Package api provides the operational HTTP server of lockbot.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/lockbot/internal/infrastructure/config"
	"github.com/nerrad567/lockbot/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds each component check run by /api/v1/health.
const healthCheckTimeout = 3 * time.Second

// UserCounter reports the size of the permission store.
type UserCounter interface {
	Count() int
	OwnerCount() int
}

// PendingCounter reports live open-door confirmations.
type PendingCounter interface {
	Pending() int
}

// SessionCounter reports identities inside the admin editor.
type SessionCounter interface {
	Active() int
}

// WorkerCounter reports live per-chat workers.
type WorkerCounter interface {
	Workers() int
}

// HealthCheck is one named component check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Users    UserCounter
	Tokens   PendingCounter
	Sessions SessionCounter
	// Workers is optional; it is nil when the gateway is not running.
	Workers WorkerCounter
	Checks  []HealthCheck
	// Webhook receives Telegram updates at WebhookPath when set.
	Webhook     http.Handler
	WebhookPath string
	Version     string
}

// Server is the HTTP API server for lockbot.
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	users       UserCounter
	tokens      PendingCounter
	sessions    SessionCounter
	workers     WorkerCounter
	checks      []HealthCheck
	webhook     http.Handler
	webhookPath string
	version     string
	startTime   time.Time

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user counter is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("confirmation counter is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session counter is required")
	}
	if deps.Webhook != nil && deps.WebhookPath == "" {
		return nil, fmt.Errorf("webhook path is required with a webhook handler")
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		users:       deps.Users,
		tokens:      deps.Tokens,
		sessions:    deps.Sessions,
		workers:     deps.Workers,
		checks:      deps.Checks,
		webhook:     deps.Webhook,
		webhookPath: deps.WebhookPath,
		version:     deps.Version,
		startTime:   time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
// Binding errors (port in use, etc.) are returned synchronously.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
