package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/storefront/internal/catalog"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/routing"
)

func newJet(t *testing.T) *jet.Jet {
	t.Helper()
	router, err := routing.New(nil, "us")
	require.NoError(t, err)
	c, err := catalog.LoadCatalog("")
	require.NoError(t, err)
	src, err := catalog.NewFixtureSource(c, router)
	require.NoError(t, err)

	j := jet.New(jet.Options{})
	router.Register(j.Intents())
	catalog.Register(j.Intents(), src)
	return j
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func prefetchedJSON(t *testing.T, body string) string {
	t.Helper()
	open := `<script id="` + PrefetchScriptID + `" type="application/json">`
	start := strings.Index(body, open)
	require.GreaterOrEqual(t, start, 0, "prefetch script missing")
	rest := body[start+len(open):]
	end := strings.Index(rest, "</script>")
	require.GreaterOrEqual(t, end, 0)
	return rest[:end]
}

func TestRenderPage(t *testing.T) {
	h := New(newJet(t), Options{}).Handler()

	code, body := get(t, h, "/us/today")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<title>Today</title>")
	assert.Contains(t, body, `<link rel="canonical" href="/us/today">`)
	assert.Contains(t, body, `<html lang="en-US">`)
	assert.Contains(t, body, "Chess Club")
	assert.Contains(t, body, `data-presentation="modal"`)
	assert.NotContains(t, body, "data-server-side")

	prefetched := jet.NewPrefetched()
	require.NoError(t, prefetched.LoadJSON([]byte(prefetchedJSON(t, body))))
	v, ok := prefetched.Take(intent.GroupingPageIntent{
		Locale: intent.Locale{Storefront: "us", Language: "en-US"},
		Name:   "today",
	})
	require.True(t, ok, "rendered page is handed over as a prefetched intent")
	assert.Equal(t, "Today", v.(*intent.Page).Title)
}

func TestPrefetchedPageSkipsDispatch(t *testing.T) {
	h := New(newJet(t), Options{}).Handler()
	_, body := get(t, h, "/us/app/chess-club/id1")

	client := jet.New(jet.Options{Prefetched: jet.NewPrefetched()})
	require.NoError(t, client.Prefetched().LoadJSON([]byte(prefetchedJSON(t, body))))

	// No controllers are registered, so only the prefetched value can answer.
	p, err := jet.DispatchPage(context.Background(), client, intent.ProductPageIntent{
		Locale: intent.Locale{Storefront: "us", Language: "en-US"},
		ID:     "id1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Chess Club", p.Title)
	assert.Equal(t, 0, client.Prefetched().Len())
}

func TestRenderPageDescriptionMarkdown(t *testing.T) {
	h := New(newJet(t), Options{}).Handler()

	code, body := get(t, h, "/us/app/chess-club/id1")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<meta name="description" content="Chess Club pairs you with players at your level.">`)
	assert.Contains(t, body, "<p><strong>Chess Club</strong> pairs you with players at your level.</p>")
	assert.Contains(t, body, "<li>Daily puzzles</li>")
}

func TestAccountPageIsServerSide(t *testing.T) {
	h := New(newJet(t), Options{}).Handler()
	code, body := get(t, h, "/us/account")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `data-server-side="true"`)
}

func TestNotFound(t *testing.T) {
	h := New(newJet(t), Options{}).Handler()

	for _, path := range []string{"/nowhere/at/all", "/us/app/id404", "/zz/today"} {
		t.Run(path, func(t *testing.T) {
			code, body := get(t, h, path)
			assert.Equal(t, http.StatusNotFound, code)
			assert.Contains(t, body, "Page not found")
		})
	}
}

func TestFetchFailure(t *testing.T) {
	router, err := routing.New(nil, "us")
	require.NoError(t, err)
	j := jet.New(jet.Options{})
	router.Register(j.Intents())
	j.Intents().Register(intent.KindGroupingPage, func(context.Context, intent.Intent) (any, error) {
		return nil, errors.New("upstream unavailable")
	})

	code, body := get(t, New(j, Options{}).Handler(), "/us/today")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body, "upstream unavailable")
}

func TestMetricsAndHealth(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "storefront_up 1\n")
	})
	h := New(newJet(t), Options{Metrics: metrics}).Handler()

	code, body := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "storefront_up 1\n", body)

	code, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusNoContent, code)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(newJet(t), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
