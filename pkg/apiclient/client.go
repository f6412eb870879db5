// Package apiclient is the HTTP client of the banking backend: base URL,
// bearer token, fixed timeout, envelope decoding and error normalization.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"
	"bank-client/pkg/metrics"
	"bank-client/pkg/resilience"
	"bank-client/pkg/tokenstore"

	"go.uber.org/zap"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Config configures the client.
type Config struct {
	// BaseURL is prepended to every request path, e.g. https://bank.example.com/api
	BaseURL string

	// Timeout bounds each request. Default: 10s
	Timeout time.Duration

	// UserAgent is sent with every request
	UserAgent string

	// Transport is the underlying round tripper. Default: http.DefaultTransport
	Transport http.RoundTripper
}

// DefaultConfig returns the configuration for baseURL with the standard 10s timeout.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   10 * time.Second,
		UserAgent: "bank-client/1.0",
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithBreaker routes every call through b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithMetrics reports request outcomes to collector.
func WithMetrics(collector metrics.Collector) Option {
	return func(c *Client) { c.metrics = collector }
}

// WithLogger replaces the default component logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client issues JSON requests against the banking backend.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	breaker   *resilience.Breaker
	metrics   metrics.Collector
	logger    *logging.Logger
}

// New creates a client whose requests carry the token held in store.
func New(cfg Config, store tokenstore.Store, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		metrics:   metrics.NoOpCollector{},
		logger:    logging.L().Component("apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &BearerTransport{
			Base:   cfg.Transport,
			Store:  store,
			Logger: c.logger,
		},
	}
	return c, nil
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Result describes a successful response.
type Result struct {
	Status int

	// Message is the envelope message, if any
	Message string

	// HasData is false when the backend answered success without a payload,
	// e.g. {"success": true}. out is left untouched in that case.
	HasData bool
}

// Get is Do with GET and no body.
func (c *Client) Get(ctx context.Context, op, path string, out any) (Result, error) {
	return c.Do(ctx, op, http.MethodGet, path, nil, out)
}

// Post is Do with POST.
func (c *Client) Post(ctx context.Context, op, path string, body, out any) (Result, error) {
	return c.Do(ctx, op, http.MethodPost, path, body, out)
}

// Put is Do with PUT.
func (c *Client) Put(ctx context.Context, op, path string, body, out any) (Result, error) {
	return c.Do(ctx, op, http.MethodPut, path, body, out)
}

// Patch is Do with PATCH.
func (c *Client) Patch(ctx context.Context, op, path string, body, out any) (Result, error) {
	return c.Do(ctx, op, http.MethodPatch, path, body, out)
}

// Delete is Do with DELETE and no body.
func (c *Client) Delete(ctx context.Context, op, path string, out any) (Result, error) {
	return c.Do(ctx, op, http.MethodDelete, path, nil, out)
}

// Do sends one request and decodes the payload into out (which may be nil).
// Every returned error wraps a bankerr category. Nothing is retried.
func (c *Client) Do(ctx context.Context, op, method, path string, body, out any) (Result, error) {
	var result Result
	call := func(ctx context.Context) error {
		var err error
		result, err = c.do(ctx, op, method, path, body, out)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, op, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		c.metrics.RecordRequestError(op, bankerr.Classify(err))
		return Result{}, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (Result, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return Result{}, fmt.Errorf("%s: build request: %w", op, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return Result{}, transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	duration := time.Since(start)
	c.metrics.RecordRequest(op, resp.StatusCode, duration)
	if err != nil {
		return Result{}, transportError(ctx, op, err)
	}

	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, bankerr.FromStatus(op, resp.StatusCode, errorMessage(data))
	}

	result, err := decode(data, out)
	if err != nil {
		var apiErr *bankerr.APIError
		if errors.As(err, &apiErr) {
			apiErr.Op = op
			apiErr.Status = resp.StatusCode
			return Result{}, apiErr
		}
		return Result{}, bankerr.New(op, bankerr.ErrMalformedResponse, err.Error())
	}
	result.Status = resp.StatusCode
	return result, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// transportError maps failures without an HTTP response onto network or timeout.
func transportError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return bankerr.New(op, bankerr.ErrTimeout, "")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return bankerr.New(op, bankerr.ErrTimeout, "")
	}
	return &bankerr.APIError{Op: op, Kind: bankerr.ErrNetwork, Message: err.Error()}
}
