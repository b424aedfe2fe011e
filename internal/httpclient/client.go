// Package httpclient executes authenticated GitLab REST calls with retry,
// exponential backoff and rate-limit awareness.
//
// Request retries network failures and 5xx/408/429 responses up to the
// configured number of attempts; every other 4xx is returned immediately as
// an *HTTPError. RequestWithRateLimit additionally waits out a 403 that
// carries a rate-limit reset header and tries once more.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lininn/gitlab-review-mcp/internal/logging"
	"github.com/lininn/gitlab-review-mcp/internal/metrics"
)

const (
	DefaultBaseBackoff      = 1 * time.Second
	DefaultMaxBackoff       = 10 * time.Second
	DefaultJitterFraction   = 0.25
	DefaultMaxRateLimitWait = 1 * time.Hour
	maxResponseBytes        = 10 << 20
	userAgent               = "gitlab-review-mcp"
)

// ErrTransport marks failures where no HTTP response was received.
var ErrTransport = errors.New("transport error")

// Doer is the subset of *http.Client the executor needs (allows mocking in tests).
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://gitlab.com/api/v4.
	BaseURL string
	Token   string
	// Timeout bounds each individual attempt.
	Timeout     time.Duration
	MaxAttempts int

	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	JitterFraction   float64
	MaxRateLimitWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	if c.MaxRateLimitWait <= 0 {
		c.MaxRateLimitWait = DefaultMaxRateLimitWait
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// RequestOptions describes one call. Data, when non-nil, is sent as JSON.
type RequestOptions struct {
	Method  string
	Data    any
	Query   url.Values
	Headers map[string]string
	// Timeout overrides Config.Timeout for this call.
	Timeout time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method   string
	Endpoint string
	Status   int
	Body     string
	Header   http.Header
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: API returned status %d: %s", e.Method, e.Endpoint, e.Status, truncate(e.Body, 500))
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// Client is safe for concurrent use; it holds no per-call state.
type Client struct {
	cfg    Config
	http   Doer
	logger *logging.AppLogger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Client. A nil doer uses a fresh *http.Client.
func New(cfg Config, doer Doer, logger *logging.AppLogger) *Client {
	if doer == nil {
		doer = &http.Client{}
	}
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &Client{
		cfg:    cfg.withDefaults(),
		http:   doer,
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Request performs endpoint (relative to the API root, already escaped)
// with retry on transient failures.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var payload []byte
	if opts.Data != nil {
		var err error
		payload, err = json.Marshal(opts.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.do(ctx, method, endpoint, payload, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(ctx, err) || attempt == c.cfg.MaxAttempts {
			break
		}

		wait := c.backoff(attempt, err)
		metrics.ObserveRetry()
		c.logger.Warn("GitLab request failed, retrying",
			"method", method,
			"endpoint", endpoint,
			"attempt", attempt,
			"maxAttempts", c.cfg.MaxAttempts,
			"backoff", wait,
			"error", err)

		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, endpoint, err)
		}
	}

	return nil, lastErr
}

// RequestWithRateLimit wraps Request. A 403 carrying a rate-limit reset
// header is waited out (capped at MaxRateLimitWait) and retried once.
func (c *Client) RequestWithRateLimit(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	resp, err := c.Request(ctx, endpoint, opts)
	if err == nil {
		return resp, nil
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusForbidden {
		return nil, err
	}

	wait, ok := c.rateLimitWait(httpErr.Header)
	if !ok {
		return nil, err
	}

	c.logger.Warn("GitLab rate limit reached, waiting for reset",
		"endpoint", endpoint,
		"wait", wait)

	if err := c.sleep(ctx, wait); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limit reset: %w", ErrTransport, err)
	}

	return c.Request(ctx, endpoint, opts)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, opts RequestOptions) (*Response, error) {
	timeout := c.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.cfg.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.cfg.Token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveHTTPRequest(method, 0)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.ObserveHTTPRequest(method, 0)
		return nil, fmt.Errorf("%w: reading %s %s: %w", ErrTransport, method, endpoint, err)
	}

	metrics.ObserveHTTPRequest(method, resp.StatusCode)
	c.logger.Debug("GitLab request completed",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:   method,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     string(data),
			Header:   resp.Header,
		}
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}

// isRetryable classifies an attempt failure. Cancellation of the caller's
// context is never retried.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status >= 500:
			return true
		case httpErr.Status == http.StatusRequestTimeout, httpErr.Status == http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}

	return errors.Is(err, ErrTransport)
}

// backoff returns BaseBackoff * 2^(attempt-1), capped at MaxBackoff, with
// ±JitterFraction jitter. A Retry-After header on a 429 raises the floor.
func (c *Client) backoff(attempt int, err error) time.Duration {
	d := c.cfg.BaseBackoff
	for i := 1; i < attempt && d < c.cfg.MaxBackoff; i++ {
		d *= 2
	}
	d = min(d, c.cfg.MaxBackoff)

	if c.cfg.JitterFraction > 0 {
		factor := 1 + (rand.Float64()*2-1)*c.cfg.JitterFraction
		d = time.Duration(float64(d) * factor)
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Status == http.StatusTooManyRequests {
		if secs, convErr := strconv.Atoi(httpErr.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			retryAfter := min(time.Duration(secs)*time.Second, c.cfg.MaxBackoff)
			d = max(d, retryAfter)
		}
	}

	return d
}

// rateLimitWait reads GitLab's reset header (epoch seconds) and returns how
// long to wait, clamped to [0, MaxRateLimitWait].
func (c *Client) rateLimitWait(header http.Header) (time.Duration, bool) {
	raw := header.Get("RateLimit-Reset")
	if raw == "" {
		raw = header.Get("X-RateLimit-Reset")
	}
	if raw == "" {
		return 0, false
	}

	epoch, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}

	wait := time.Unix(epoch, 0).Sub(c.now())
	if wait < 0 {
		wait = 0
	}
	return min(wait, c.cfg.MaxRateLimitWait), true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
