package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/storefront/internal/output"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	if s == "" {
		return "", output.ErrAuth("Not authenticated")
	}
	return string(s), nil
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", staticToken("tok"), WithRateLimit(1000, 10))
	c.retryDelay = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestGet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/catalog/us/apps/id1", r.URL.Path)
		assert.Equal(t, "en-US", r.URL.Query().Get("l"))
		assert.Contains(t, r.Header.Get("User-Agent"), "storefront/")
		_, _ = w.Write([]byte(`{"data":[{"id":"id1"}]}`))
	})

	resp, err := c.Get(context.Background(), "v1/catalog/us/apps/id1", url.Values{"l": {"en-US"}})
	require.NoError(t, err)

	var body struct {
		Data []struct{ ID string } `json:"data"`
	}
	require.NoError(t, resp.UnmarshalData(&body))
	assert.Equal(t, "id1", body.Data[0].ID)
}

func TestGetStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusNotFound, output.CodeNotFound},
		{http.StatusUnauthorized, output.CodeAuth},
		{http.StatusForbidden, output.CodeForbidden},
		{http.StatusBadRequest, output.CodeAPI},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})
			_, err := c.Get(context.Background(), "/v1/x", nil)
			require.Error(t, err)
			e := output.AsError(err)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.status, e.StatusCode())
			assert.Equal(t, int32(1), calls.Load(), "non-retryable errors are not retried")
		})
	}
}

func TestGetAPIErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":[{"title":"Invalid","detail":"term is required"}]}`))
	})
	_, err := c.Get(context.Background(), "/v1/search", nil)
	require.Error(t, err)
	assert.Equal(t, "term is required", output.AsError(err).Message)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Get(context.Background(), "/v1/x", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Get(context.Background(), "/v1/x", nil)
	require.Error(t, err)
	assert.Equal(t, output.CodeRateLimit, output.AsError(err).Code)
	assert.Equal(t, int32(maxRetries), calls.Load())
}

func TestGetWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("request should not be sent")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, staticToken("")).Get(context.Background(), "/v1/x", nil)
	require.Error(t, err)
	assert.Equal(t, output.CodeAuth, output.AsError(err).Code)
}

func TestGetCanceled(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "/v1/x", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 0, parseRetryAfter(""))
	assert.Equal(t, 30, parseRetryAfter("30"))
	assert.Equal(t, 0, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}

func TestBuildURL(t *testing.T) {
	c := NewClient("https://api.test/", staticToken("x"))
	assert.Equal(t, "https://api.test/v1/a?term=b+c", c.buildURL("v1/a", url.Values{"term": {"b c"}}))
	assert.Equal(t, "https://api.test/v1/a", c.buildURL("/v1/a", nil))
}

type recordingHooks struct {
	mu      sync.Mutex
	starts  []RequestInfo
	results []RequestResult
	retries []int
}

func (h *recordingHooks) OnRequestStart(ctx context.Context, info RequestInfo) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, info)
	return ctx
}

func (h *recordingHooks) OnRequestEnd(_ context.Context, _ RequestInfo, result RequestResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
}

func (h *recordingHooks) OnRetry(_ context.Context, _ RequestInfo, attempt int, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries = append(h.retries, attempt)
}

func TestGetReportsToHooks(t *testing.T) {
	var calls atomic.Int32
	hooks := &recordingHooks{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	WithHooks(hooks)(c)

	_, err := c.Get(context.Background(), "/v1/me/account", nil)
	require.NoError(t, err)

	require.Len(t, hooks.starts, 2)
	assert.Equal(t, 1, hooks.starts[0].Attempt)
	assert.Equal(t, 2, hooks.starts[1].Attempt)
	assert.Equal(t, http.MethodGet, hooks.starts[0].Method)

	require.Len(t, hooks.results, 2)
	assert.Equal(t, http.StatusBadGateway, hooks.results[0].StatusCode)
	assert.True(t, hooks.results[0].Retryable)
	assert.Error(t, hooks.results[0].Error)
	assert.Equal(t, http.StatusOK, hooks.results[1].StatusCode)
	assert.NoError(t, hooks.results[1].Error)

	assert.Equal(t, []int{2}, hooks.retries)
}

type fakeBreaker struct {
	mu        sync.Mutex
	open      bool
	successes int
	failures  int
}

func (b *fakeBreaker) Allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open, nil
}

func (b *fakeBreaker) RecordSuccess() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes++
	return nil
}

func (b *fakeBreaker) RecordFailure() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	return nil
}

func TestGetOpenBreakerFailsFast(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	WithBreaker(&fakeBreaker{open: true})(c)

	_, err := c.Get(context.Background(), "/v1/me/account", nil)
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, output.CodeAPI, e.Code)
	assert.Equal(t, http.StatusServiceUnavailable, e.HTTPStatus)
	assert.Zero(t, calls.Load())
}

func TestGetFeedsBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	})
	b := &fakeBreaker{}
	WithBreaker(b)(c)

	_, err := c.Get(context.Background(), "/v1/catalog/us/apps/id1", nil)
	require.Error(t, err)
	assert.Equal(t, 1, b.failures)
	assert.Equal(t, 1, b.successes, "a 404 is an answer, not an outage")

	_, err = c.Get(context.Background(), "/v1/me/account", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, b.successes)
}
