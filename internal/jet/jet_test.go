package jet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/storefront/internal/intent"
)

type recorded struct {
	mu         sync.Mutex
	dispatched []intent.Kind
	performed  []intent.Outcome
	hits       int
}

func (r *recorded) IntentDispatched(kind intent.Kind, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, kind)
}

func (r *recorded) ActionPerformed(_ intent.ActionKind, outcome intent.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.performed = append(r.performed, outcome)
}

func (r *recorded) PrefetchHit(intent.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
}

var us = intent.Locale{Storefront: "us", Language: "en-US"}

func productController(calls *int) Controller {
	return func(_ context.Context, i intent.Intent) (any, error) {
		*calls++
		p := i.(intent.ProductPageIntent)
		return &intent.Page{Kind: intent.PageProduct, Title: "App " + p.ID, CanonicalURL: "/us/app/" + p.ID}, nil
	}
}

func TestDispatcher_DuplicateRegistrationPanics(t *testing.T) {
	d := NewDispatcher()
	d.Register(intent.KindProductPage, productController(new(int)))
	assert.Panics(t, func() {
		d.Register(intent.KindProductPage, productController(new(int)))
	})
}

func TestDispatcher_UnknownKind(t *testing.T) {
	_, err := NewDispatcher().Dispatch(context.Background(), intent.RoomPageIntent{ID: "id1"})
	assert.True(t, errors.Is(err, ErrNoController))
}

func TestDispatcher_Kinds(t *testing.T) {
	d := NewDispatcher()
	d.Register(intent.KindSearchResults, productController(new(int)))
	d.Register(intent.KindGroupingPage, productController(new(int)))
	assert.Equal(t, []intent.Kind{intent.KindGroupingPage, intent.KindSearchResults}, d.Kinds())
}

func TestJet_DispatchUsesController(t *testing.T) {
	rec := &recorded{}
	j := New(Options{Recorder: rec})
	calls := 0
	j.Intents().Register(intent.KindProductPage, productController(&calls))

	page, err := DispatchPage(context.Background(), j, intent.ProductPageIntent{Locale: us, ID: "id1"})
	require.NoError(t, err)
	assert.Equal(t, "App id1", page.Title)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []intent.Kind{intent.KindProductPage}, rec.dispatched)
}

func TestJet_PrefetchedConsumedOnce(t *testing.T) {
	rec := &recorded{}
	j := New(Options{Recorder: rec})
	calls := 0
	j.Intents().Register(intent.KindProductPage, productController(&calls))

	prefetchedPage := &intent.Page{Kind: intent.PageProduct, Title: "Prefetched", CanonicalURL: "/us/app/id1"}
	require.NoError(t, j.Prefetched().Add(intent.ProductPageIntent{Locale: us, ID: "id1"}, prefetchedPage))

	// A structurally identical intent hits the cache.
	first, err := DispatchPage(context.Background(), j, intent.ProductPageIntent{Locale: us, ID: "id1"})
	require.NoError(t, err)
	assert.Same(t, prefetchedPage, first)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, rec.hits)

	second, err := DispatchPage(context.Background(), j, intent.ProductPageIntent{Locale: us, ID: "id1"})
	require.NoError(t, err)
	assert.Equal(t, "App id1", second.Title)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, j.Prefetched().Len())
}

func TestPrefetched_KeyDistinguishesKinds(t *testing.T) {
	a, err := Key(intent.ProductPageIntent{Locale: us, ID: "id1"})
	require.NoError(t, err)
	b, err := Key(intent.RoomPageIntent{Locale: us, ID: "id1"})
	require.NoError(t, err)
	c, err := Key(intent.ProductPageIntent{Locale: us, ID: "id1"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}

func TestPrefetched_LoadJSON(t *testing.T) {
	env, err := intent.Wrap(intent.GroupingPageIntent{Locale: us, Name: "today"})
	require.NoError(t, err)
	data, err := json.Marshal([]PrefetchedIntent{{
		Intent: env,
		Page:   &intent.Page{Kind: intent.PageGrouping, Title: "Today", CanonicalURL: "/us/today"},
	}})
	require.NoError(t, err)

	p := NewPrefetched()
	require.NoError(t, p.LoadJSON(data))

	v, ok := p.Take(intent.GroupingPageIntent{Locale: us, Name: "today"})
	require.True(t, ok)
	assert.Equal(t, "Today", v.(*intent.Page).Title)

	_, ok = p.Take(intent.GroupingPageIntent{Locale: us, Name: "today"})
	assert.False(t, ok)
}

func TestPrefetched_LoadJSONRejectsGarbage(t *testing.T) {
	assert.Error(t, NewPrefetched().LoadJSON([]byte(`{`)))
	assert.Error(t, NewPrefetched().LoadJSON([]byte(`[{"intent":{"$kind":"Bogus"}}]`)))
}

func TestDispatchPage_WrongType(t *testing.T) {
	j := New(Options{})
	j.Intents().Register(intent.KindRoomPage, func(context.Context, intent.Intent) (any, error) {
		return "not a page", nil
	})
	_, err := DispatchPage(context.Background(), j, intent.RoomPageIntent{ID: "id1"})
	assert.ErrorContains(t, err, "want page")
}

func TestJet_OnActionDuplicatePanics(t *testing.T) {
	j := New(Options{})
	h := func(context.Context, intent.Action, MetricsBehavior) intent.Outcome { return intent.OutcomePerformed }
	j.OnAction(intent.FlowActionKind, h)
	assert.Panics(t, func() { j.OnAction(intent.FlowActionKind, h) })
}

func TestJet_PerformMetricsBehavior(t *testing.T) {
	rec := &recorded{}
	j := New(Options{Recorder: rec})

	var got []MetricsBehavior
	j.OnAction(intent.FlowActionKind, func(_ context.Context, _ intent.Action, m MetricsBehavior) intent.Outcome {
		got = append(got, m)
		return intent.OutcomePerformed
	})

	assert.Equal(t, intent.OutcomePerformed, j.Perform(context.Background(), intent.FlowAction{}))

	j.SetCurrentPage(&intent.Page{Metrics: &intent.PageMetrics{PageID: "id9", PageType: "Software"}})
	j.Perform(context.Background(), intent.FlowAction{})

	require.Len(t, got, 2)
	assert.False(t, got[0].Processed, "no active page means not processed")
	assert.True(t, got[1].Processed)
	assert.Equal(t, "id9", got[1].PageID)
	assert.Equal(t, "Software", got[1].PageType)
	assert.Equal(t, []intent.Outcome{intent.OutcomePerformed, intent.OutcomePerformed}, rec.performed)
}

func TestJet_PerformUnknownAction(t *testing.T) {
	j := New(Options{})
	assert.Equal(t, intent.OutcomeUnsupported, j.Perform(context.Background(), intent.ExternalURLAction{URL: "https://example.com"}))
	assert.Equal(t, intent.OutcomeUnsupported, j.Perform(context.Background(), nil))
}

func TestJet_RouteURL(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	j := New(Options{Logger: logger})
	j.Intents().Register(intent.KindRouteURL, func(_ context.Context, i intent.Intent) (any, error) {
		u := i.(intent.RouteURLIntent).URL
		if u != "/us/app/id1" {
			return nil, errors.New("no route")
		}
		dest := intent.ProductPageIntent{Locale: us, ID: "id1"}
		return &Route{Intent: dest, Action: &intent.FlowAction{Destination: dest, PageURL: u}, Storefront: "us", Language: "en-US"}, nil
	})

	route := j.RouteURL(context.Background(), "/us/app/id1")
	require.NotNil(t, route)
	assert.Equal(t, intent.ProductPageIntent{Locale: us, ID: "id1"}, route.Intent)
	assert.Contains(t, buf.String(), "routed url")

	assert.Nil(t, j.RouteURL(context.Background(), "/missing"))
	assert.Contains(t, buf.String(), "url not routable")
}

func TestJet_RouteURLWithoutRouter(t *testing.T) {
	assert.Nil(t, New(Options{}).RouteURL(context.Background(), "/us"))
}
