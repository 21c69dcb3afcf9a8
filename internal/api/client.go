// Package api provides an HTTP client for the storefront media API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/version"
)

const (
	maxRetries = 3
	baseDelay  = 250 * time.Millisecond
	maxJitter  = 100 * time.Millisecond

	// DefaultRate is the sustained request rate the client paces itself to.
	DefaultRate  = 20
	defaultBurst = 5
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// RequestInfo describes an outgoing request.
type RequestInfo struct {
	Method  string
	URL     string
	Attempt int
}

// RequestResult describes how a request ended.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Retryable  bool
	Error      error
}

// Hooks observe the request lifecycle.
type Hooks interface {
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRetry(ctx context.Context, info RequestInfo, attempt int, err error)
}

// Breaker decides whether requests may go out and learns from how they end.
type Breaker interface {
	Allow() (bool, error)
	RecordSuccess() error
	RecordFailure() error
}

type nopHooks struct{}

func (nopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context { return ctx }
func (nopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult)         {}
func (nopHooks) OnRetry(context.Context, RequestInfo, int, error)                 {}

// Client is an HTTP client for the media API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	limiter    *rate.Limiter
	logger     *slog.Logger
	hooks      Hooks
	breaker    Breaker
	retryDelay func(attempt int) time.Duration
}

// Response wraps an API response.
type Response struct {
	Data       []byte
	StatusCode int
	Headers    http.Header
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit paces requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHooks sets the request lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithBreaker gates requests through b.
func WithBreaker(b Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// NewClient creates a new API client for baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		limiter:    rate.NewLimiter(DefaultRate, defaultBurst),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		hooks:      nopHooks{},
		retryDelay: backoffDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request for path with query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	u := c.buildURL(path, query)
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.singleRequest(ctx, u, attempt)
		if err == nil {
			return resp, nil
		}

		apiErr, ok := err.(*output.Error)
		if !ok || !apiErr.Retryable {
			return nil, err
		}
		lastErr = err
		c.hooks.OnRetry(ctx, RequestInfo{Method: http.MethodGet, URL: u, Attempt: attempt}, attempt+1, err)

		delay := c.retryDelay(attempt)
		c.logger.Debug("retrying media API request", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) singleRequest(ctx context.Context, u string, attempt int) (*Response, error) {
	if c.breaker != nil {
		if ok, _ := c.breaker.Allow(); !ok {
			return nil, errCircuitOpen()
		}
	}

	info := RequestInfo{Method: http.MethodGet, URL: u, Attempt: attempt}
	ctx = c.hooks.OnRequestStart(ctx, info)
	start := time.Now()

	resp, err := c.doRequest(ctx, u, attempt)
	c.record(err)

	result := RequestResult{Duration: time.Since(start), Error: err}
	if resp != nil {
		result.StatusCode = resp.StatusCode
	}
	if e, ok := err.(*output.Error); ok {
		result.StatusCode = e.HTTPStatus
		result.Retryable = e.Retryable
	}
	c.hooks.OnRequestEnd(ctx, info, result)
	return resp, err
}

func (c *Client) doRequest(ctx context.Context, u string, attempt int) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("media API request", "url", u, "attempt", attempt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, output.ErrNetwork(fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return &Response{Data: body, StatusCode: resp.StatusCode, Headers: resp.Header}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, output.ErrRateLimit(parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, output.ErrAuth("Media API rejected the token")
	case resp.StatusCode == http.StatusForbidden:
		return nil, output.ErrForbidden("Access denied")
	case resp.StatusCode == http.StatusNotFound:
		return nil, output.ErrNotFound("Resource", strings.TrimPrefix(u, c.baseURL))
	case resp.StatusCode >= 500:
		return nil, output.ErrAPI(resp.StatusCode, fmt.Sprintf("Server error (%d)", resp.StatusCode))
	default:
		var apiErr struct {
			Errors []struct {
				Title  string `json:"title"`
				Detail string `json:"detail"`
			} `json:"errors"`
		}
		if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
			msg := apiErr.Errors[0].Detail
			if msg == "" {
				msg = apiErr.Errors[0].Title
			}
			return nil, output.ErrAPI(resp.StatusCode, msg)
		}
		return nil, output.ErrAPI(resp.StatusCode, fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode))
	}
}

// record feeds the breaker. Only network failures and retryable statuses
// count against the API. Cancellation counts neither way.
func (c *Client) record(err error) {
	if c.breaker == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	var apiErr *output.Error
	if errors.As(err, &apiErr) && apiErr.Retryable {
		_ = c.breaker.RecordFailure()
		return
	}
	_ = c.breaker.RecordSuccess()
}

func errCircuitOpen() *output.Error {
	return &output.Error{
		Code:       output.CodeAPI,
		Message:    "Media API paused after repeated failures",
		Hint:       "Requests resume automatically; run storefront doctor for details",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func (c *Client) buildURL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func backoffDelay(attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1)
	delay := baseDelay * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(maxJitter))) //nolint:gosec // G404: Jitter doesn't need crypto rand
	return delay + jitter
}

// parseRetryAfter parses the Retry-After header value.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return seconds
	}
	return 0
}
