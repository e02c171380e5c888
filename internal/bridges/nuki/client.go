package nuki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nerrad567/lockbot/internal/infrastructure/config"
)

// DefaultTimeout bounds every bridge call when the config leaves it unset.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 64 << 10

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client talks to one lock through one bridge.
type Client struct {
	baseURL    *url.URL
	token      string
	deviceID   int64
	deviceType int
	timeout    time.Duration
	httpClient *http.Client
	logger     Logger
}

// New creates a client from the bridge configuration.
func New(cfg config.BridgeConfig) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}

	base := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
	return newClient(base, cfg), nil
}

// newClient skips host validation so tests can point at httptest servers.
func newClient(base *url.URL, cfg config.BridgeConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		deviceID:   cfg.DeviceID,
		deviceType: cfg.DeviceType,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// PerformAction asks the bridge to execute action on the lock.
//
// Parameters:
//   - ctx: Context for cancellation; the client timeout also applies
//   - action: Lock action to perform
//
// Returns:
//   - ActionResult: Outcome and battery flag as reported by the bridge
//   - error: ErrUnreachable, ErrTimeout, ErrHTTPStatus or ErrBadResponse
func (c *Client) PerformAction(ctx context.Context, action Action) (ActionResult, error) {
	params := c.params()
	params.Set("action", strconv.Itoa(int(action)))

	var resp actionResponse
	if err := c.get(ctx, "/lockAction", params, &resp); err != nil {
		c.logger.Error("lock action failed", "action", action.String(), "error", err)
		return ActionResult{}, err
	}

	res := resp.result()
	c.logger.Info("lock action completed", "action", action.String(), "outcome", res.Outcome.String())
	return res, nil
}

// ReadState fetches the current lock state.
func (c *Client) ReadState(ctx context.Context) (LockState, error) {
	var resp stateResponse
	if err := c.get(ctx, "/lockState", c.params(), &resp); err != nil {
		c.logger.Error("lock state read failed", "error", err)
		return LockState{}, err
	}
	return resp.state(), nil
}

// HealthCheck verifies the bridge answers a state read.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ReadState(ctx)
	return err
}

func (c *Client) params() url.Values {
	v := url.Values{}
	v.Set("nukiId", strconv.FormatInt(c.deviceID, 10))
	v.Set("deviceType", strconv.Itoa(c.deviceType))
	v.Set("token", c.token)
	return v
}

// get performs one request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path = path
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: building request for %s", ErrUnreachable, path)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	c.logger.Debug("bridge response", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize)) //nolint:errcheck // draining only
		return fmt.Errorf("%w: %s returned %d %s", ErrHTTPStatus, path, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return c.transportError(ctx, path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadResponse, path, err)
	}
	return nil
}

// transportError classifies err without leaking the request URL, which
// carries the bridge token.
func (c *Client) transportError(ctx context.Context, path string, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return fmt.Errorf("%w: %s after %s", ErrTimeout, path, c.timeout)
		}
		err = uerr.Err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, path, c.timeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: request cancelled", ErrUnreachable, path)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnreachable, path, err)
}
