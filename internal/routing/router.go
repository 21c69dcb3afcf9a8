// Package routing maps storefront URLs to destination intents and back.
package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
)

// ErrUnroutable is returned for URLs that name no destination.
var ErrUnroutable = errors.New("unroutable url")

// Tabs are the top-level grouping pages.
var Tabs = []string{"today", "games", "apps", "arcade"}

// Storefront is a country storefront and the languages it serves. The
// first language is the default.
type Storefront struct {
	ID        string
	Languages []language.Tag
}

// DefaultStorefronts are the storefronts served when none are configured.
var DefaultStorefronts = []Storefront{
	{ID: "us", Languages: []language.Tag{language.AmericanEnglish, language.LatinAmericanSpanish}},
	{ID: "gb", Languages: []language.Tag{language.BritishEnglish}},
	{ID: "fr", Languages: []language.Tag{language.MustParse("fr-FR"), language.MustParse("en-GB")}},
	{ID: "de", Languages: []language.Tag{language.MustParse("de-DE"), language.MustParse("en-GB")}},
	{ID: "jp", Languages: []language.Tag{language.MustParse("ja-JP"), language.AmericanEnglish}},
}

type params struct {
	rctx  *chi.Context
	query url.Values
}

func (p params) get(key string) string { return p.rctx.URLParam(key) }

type builder func(p params, loc intent.Locale) (intent.Intent, bool)

type storefront struct {
	languages []language.Tag
	matcher   language.Matcher
}

// Router resolves storefront URLs.
type Router struct {
	mux               *chi.Mux
	builders          map[string]builder
	storefronts       map[string]storefront
	defaultStorefront string
}

// New creates a Router for storefronts. defaultStorefront is used for "/".
func New(storefronts []Storefront, defaultStorefront string) (*Router, error) {
	if len(storefronts) == 0 {
		storefronts = DefaultStorefronts
	}
	r := &Router{
		mux:         chi.NewRouter(),
		builders:    make(map[string]builder),
		storefronts: make(map[string]storefront, len(storefronts)),
	}
	for _, sf := range storefronts {
		if len(sf.Languages) == 0 {
			return nil, fmt.Errorf("storefront %q has no languages", sf.ID)
		}
		r.storefronts[sf.ID] = storefront{
			languages: sf.Languages,
			matcher:   language.NewMatcher(sf.Languages),
		}
	}
	if defaultStorefront == "" {
		defaultStorefront = storefronts[0].ID
	}
	if _, ok := r.storefronts[defaultStorefront]; !ok {
		return nil, fmt.Errorf("default storefront %q is not configured", defaultStorefront)
	}
	r.defaultStorefront = defaultStorefront

	tabs := strings.Join(Tabs, "|")
	r.handle("/{sf}", func(_ params, loc intent.Locale) (intent.Intent, bool) {
		return intent.GroupingPageIntent{Locale: loc, Name: Tabs[0]}, true
	})
	r.handle("/{sf}/{tab:(?:"+tabs+")}", func(p params, loc intent.Locale) (intent.Intent, bool) {
		return intent.GroupingPageIntent{Locale: loc, Name: p.get("tab")}, true
	})
	product := func(p params, loc intent.Locale) (intent.Intent, bool) {
		return intent.ProductPageIntent{Locale: loc, ID: p.get("id")}, true
	}
	r.handle("/{sf}/app/{id:id[0-9]+}", product)
	r.handle("/{sf}/app/{slug}/{id:id[0-9]+}", product)
	r.handle("/{sf}/developer/{slug}/{id:id[0-9]+}", func(p params, loc intent.Locale) (intent.Intent, bool) {
		return intent.DeveloperPageIntent{Locale: loc, ID: p.get("id")}, true
	})
	r.handle("/{sf}/search", func(p params, loc intent.Locale) (intent.Intent, bool) {
		term := strings.TrimSpace(p.query.Get("term"))
		return intent.SearchResultsPageIntent{Locale: loc, Term: term}, true
	})
	r.handle("/{sf}/room/{id:id[0-9]+}", func(p params, loc intent.Locale) (intent.Intent, bool) {
		return intent.RoomPageIntent{Locale: loc, ID: p.get("id")}, true
	})
	r.handle("/{sf}/account", func(_ params, loc intent.Locale) (intent.Intent, bool) {
		return intent.AccountPageIntent{Locale: loc}, true
	})
	return r, nil
}

func (r *Router) handle(pattern string, b builder) {
	r.mux.Get(pattern, func(http.ResponseWriter, *http.Request) {})
	r.builders[pattern] = b
}

// Route resolves rawURL. Absolute URLs are matched on their path.
func (r *Router) Route(rawURL string) (*jet.Route, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnroutable, rawURL, err)
	}
	path := u.Path
	if path == "" || path == "/" {
		path = "/" + r.defaultStorefront
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	rctx := chi.NewRouteContext()
	pattern := r.mux.Find(rctx, http.MethodGet, path)
	build, ok := r.builders[pattern]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnroutable, rawURL)
	}

	sfID := rctx.URLParam("sf")
	sf, ok := r.storefronts[sfID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown storefront %q", ErrUnroutable, sfID)
	}

	loc := intent.Locale{Storefront: sfID, Language: sf.negotiate(u.Query().Get("l")).String()}
	dest, ok := build(params{rctx: rctx, query: u.Query()}, loc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnroutable, rawURL)
	}

	return &jet.Route{
		Intent:     dest,
		Action:     &intent.FlowAction{Destination: dest, PageURL: u.RequestURI()},
		Storefront: loc.Storefront,
		Language:   loc.Language,
	}, nil
}

func (sf storefront) negotiate(requested string) language.Tag {
	if requested == "" {
		return sf.languages[0]
	}
	_, index := language.MatchStrings(sf.matcher, requested)
	return sf.languages[index]
}

// Register installs the router as the RouteURLIntent controller.
func (r *Router) Register(d *jet.Dispatcher) {
	d.Register(intent.KindRouteURL, func(_ context.Context, i intent.Intent) (any, error) {
		return r.Route(i.(intent.RouteURLIntent).URL)
	})
}

// URLFor builds the canonical URL for a destination. slug is used for
// product and developer pages when non-empty.
func (r *Router) URLFor(i intent.Intent, slug string) (string, error) {
	if ru, ok := i.(intent.RouteURLIntent); ok {
		return ru.URL, nil
	}
	loc, ok := intent.LocaleOf(i)
	if !ok {
		return "", fmt.Errorf("no url for %s", i.Kind())
	}
	sf, ok := r.storefronts[loc.Storefront]
	if !ok {
		return "", fmt.Errorf("no url for %s: unknown storefront %q", i.Kind(), loc.Storefront)
	}

	base := "/" + loc.Storefront
	var path string
	query := url.Values{}
	switch v := i.(type) {
	case intent.GroupingPageIntent:
		path = base + "/" + v.Name
	case intent.ProductPageIntent:
		path = withSlug(base+"/app", slug) + "/" + v.ID
	case intent.DeveloperPageIntent:
		if slug == "" {
			slug = "developer"
		}
		path = base + "/developer/" + slug + "/" + v.ID
	case intent.SearchResultsPageIntent:
		path = base + "/search"
		query.Set("term", v.Term)
	case intent.RoomPageIntent:
		path = base + "/room/" + v.ID
	case intent.AccountPageIntent:
		path = base + "/account"
	default:
		return "", fmt.Errorf("no url for %s", i.Kind())
	}

	if loc.Language != "" && loc.Language != sf.languages[0].String() {
		query.Set("l", loc.Language)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path, nil
}

func withSlug(prefix, slug string) string {
	if slug == "" {
		return prefix
	}
	return prefix + "/" + url.PathEscape(slug)
}

// Storefronts returns the configured storefront IDs and their default
// language.
func (r *Router) Storefronts() map[string]string {
	out := make(map[string]string, len(r.storefronts))
	for id, sf := range r.storefronts {
		out[id] = sf.languages[0].String()
	}
	return out
}
