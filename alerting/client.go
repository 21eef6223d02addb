// Package alerting is a thin HTTP client for the alerting service. It lists
// alert types and alerts and runs create, update, delete, enable and mute
// operations against the service's REST API.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ruleguard/core"
	"ruleguard/metrics"
)

const (
	// BaseAlertAPIPath is the default mount point of the alert API
	BaseAlertAPIPath = "/api/alert"

	// maxErrorBodySize caps how much of an error response is kept
	maxErrorBodySize = 64 * 1024

	defaultTimeout = 30 * time.Second
)

// Client talks to the alert API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	basePath   string
	httpClient *http.Client
	headers    http.Header
	logger     *zap.SugaredLogger
	validate   *validator.Validate
	breaker    *breaker
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBasePath mounts the client on a base path other than BaseAlertAPIPath
func WithBasePath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.basePath = "/" + strings.Trim(path, "/")
		}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHeader adds a header sent on every request, e.g. kbn-xsrf
func WithHeader(name, value string) Option {
	return func(c *Client) {
		c.headers.Set(name, value)
	}
}

// WithCircuitBreaker fails requests fast with ErrCircuitOpen after
// maxFailures consecutive transport errors or 5xx responses, trying the
// service again once cooldown has passed. maxFailures <= 0 disables it.
func WithCircuitBreaker(maxFailures int, cooldown time.Duration) Option {
	return func(c *Client) {
		if maxFailures > 0 {
			c.breaker = newBreaker(maxFailures, cooldown)
		}
	}
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid alert API url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid alert API url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid alert API url %q: missing host", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		basePath:   BaseAlertAPIPath,
		httpClient: &http.Client{Timeout: defaultTimeout},
		headers:    make(http.Header),
		logger:     zap.NewNop().Sugar(),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is returned when the service answers with a non-2xx status
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("alert API %s %s returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("alert API %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// ListTypes returns the alert types registered with the service
func (c *Client) ListTypes(ctx context.Context) ([]core.AlertType, error) {
	var types []core.AlertType
	if err := c.do(ctx, "list_types", http.MethodGet, c.path("types"), nil, nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// Create creates an alert and returns it as stored by the service
func (c *Client) Create(ctx context.Context, alert core.AlertCreate) (*core.Alert, error) {
	var created core.Alert
	if err := c.do(ctx, "create", http.MethodPost, c.basePath, nil, alert, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the mutable attributes of alert id
func (c *Client) Update(ctx context.Context, id string, alert core.AlertUpdate) (*core.Alert, error) {
	var updated core.Alert
	if err := c.do(ctx, "update", http.MethodPut, c.path(url.PathEscape(id)), nil, alert, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete deletes every alert in ids, one request per id
func (c *Client) Delete(ctx context.Context, ids []string) error {
	return c.forEach("delete", ids, func(id string) error {
		return c.do(ctx, "delete", http.MethodDelete, c.path(url.PathEscape(id)), nil, nil, nil)
	})
}

// SetEnabled enables or disables every alert in ids
func (c *Client) SetEnabled(ctx context.Context, ids []string, enabled bool) error {
	action, op := "_disable", "disable"
	if enabled {
		action, op = "_enable", "enable"
	}
	return c.forEach(op, ids, func(id string) error {
		return c.do(ctx, op, http.MethodPost, c.path(url.PathEscape(id), action), nil, nil, nil)
	})
}

// SetMuted mutes or unmutes all instances of every alert in ids
func (c *Client) SetMuted(ctx context.Context, ids []string, muted bool) error {
	action, op := "_unmute_all", "unmute"
	if muted {
		action, op = "_mute_all", "mute"
	}
	return c.forEach(op, ids, func(id string) error {
		return c.do(ctx, op, http.MethodPost, c.path(url.PathEscape(id), action), nil, nil, nil)
	})
}

func (c *Client) path(parts ...string) string {
	return c.basePath + "/" + strings.Join(parts, "/")
}

// do sends one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) (err error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.AlertAPIRequests.WithLabelValues(op, status).Inc()
		metrics.AlertAPIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if c.breaker != nil {
		tk, allowErr := c.breaker.allow()
		if allowErr != nil {
			status = "circuit_open"
			return fmt.Errorf("%s %s: %w", method, path, allowErr)
		}
		defer func() { c.recordOutcome(tk, err) }()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range c.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warnw("Alert API request failed", "operation", op, "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	c.logger.Debugw("Alert API request",
		"operation", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) recordOutcome(tk ticket, err error) {
	from, to := c.breaker.record(tk, isServiceFailure(err))
	if from == to {
		return
	}
	switch to {
	case breakerOpen:
		metrics.AlertAPICircuitOpen.Set(1)
		c.logger.Warnw("Alert API circuit breaker opened", "cooldown", c.breaker.cooldown, "error", err)
	case breakerClosed:
		metrics.AlertAPICircuitOpen.Set(0)
		c.logger.Infow("Alert API circuit breaker closed")
	}
}
