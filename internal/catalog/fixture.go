package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/output"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the fixture data set.
type Catalog struct {
	Developers []Developer `yaml:"developers"`
	Apps       []App       `yaml:"apps"`
	Rooms      []Room      `yaml:"rooms"`
	Groupings  []Grouping  `yaml:"groupings"`
}

// Developer is a fixture developer.
type Developer struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
}

// App is a fixture app.
type App struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Subtitle    string `yaml:"subtitle"`
	Developer   string `yaml:"developer"`
	Genre       string `yaml:"genre"`
	Description string `yaml:"description"`
}

// Room layouts.
const (
	LayoutRoom    = "room"
	LayoutGeneric = "generic"
)

// Room is a curated collection of apps. Rooms with the generic layout can
// be presented modally.
type Room struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Layout      string   `yaml:"layout"`
	Modal       bool     `yaml:"modal"`
	Apps        []string `yaml:"apps"`
}

// Grouping is a top-level tab.
type Grouping struct {
	Name    string      `yaml:"name"`
	Title   string      `yaml:"title"`
	Shelves []ShelfSpec `yaml:"shelves"`
}

// ShelfSpec lists the apps and rooms on a grouping shelf.
type ShelfSpec struct {
	Title string   `yaml:"title"`
	Apps  []string `yaml:"apps"`
	Rooms []string `yaml:"rooms"`
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if _, err := newIndex(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalog reads a catalog file, or the built-in catalog when path is
// empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path from trusted config
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

type index struct {
	catalog    *Catalog
	apps       map[string]*App
	developers map[string]*Developer
	rooms      map[string]*Room
	groupings  map[string]*Grouping
}

func newIndex(c *Catalog) (*index, error) {
	ix := &index{
		catalog:    c,
		apps:       make(map[string]*App, len(c.Apps)),
		developers: make(map[string]*Developer, len(c.Developers)),
		rooms:      make(map[string]*Room, len(c.Rooms)),
		groupings:  make(map[string]*Grouping, len(c.Groupings)),
	}
	for i := range c.Developers {
		d := &c.Developers[i]
		ix.developers[d.ID] = d
	}
	for i := range c.Apps {
		a := &c.Apps[i]
		if _, ok := ix.developers[a.Developer]; !ok {
			return nil, fmt.Errorf("catalog: app %s references unknown developer %q", a.ID, a.Developer)
		}
		ix.apps[a.ID] = a
	}
	for i := range c.Rooms {
		r := &c.Rooms[i]
		switch r.Layout {
		case "":
			r.Layout = LayoutRoom
		case LayoutRoom, LayoutGeneric:
		default:
			return nil, fmt.Errorf("catalog: room %s has unknown layout %q", r.ID, r.Layout)
		}
		if err := ix.checkApps("room "+r.ID, r.Apps); err != nil {
			return nil, err
		}
		ix.rooms[r.ID] = r
	}
	for i := range c.Groupings {
		g := &c.Groupings[i]
		for _, s := range g.Shelves {
			if err := ix.checkApps("grouping "+g.Name, s.Apps); err != nil {
				return nil, err
			}
			for _, id := range s.Rooms {
				if _, ok := ix.rooms[id]; !ok {
					return nil, fmt.Errorf("catalog: grouping %s references unknown room %q", g.Name, id)
				}
			}
		}
		ix.groupings[g.Name] = g
	}
	return ix, nil
}

func (ix *index) checkApps(owner string, ids []string) error {
	for _, id := range ids {
		if _, ok := ix.apps[id]; !ok {
			return fmt.Errorf("catalog: %s references unknown app %q", owner, id)
		}
	}
	return nil
}

// FixtureSource serves pages from a Catalog.
type FixtureSource struct {
	ix      *index
	urls    URLBuilder
	latency time.Duration
}

// FixtureOption configures a FixtureSource.
type FixtureOption func(*FixtureSource)

// WithLatency delays every page by d, to exercise loading states.
func WithLatency(d time.Duration) FixtureOption {
	return func(s *FixtureSource) { s.latency = d }
}

// NewFixtureSource serves c. Page URLs are built with urls.
func NewFixtureSource(c *Catalog, urls URLBuilder, opts ...FixtureOption) (*FixtureSource, error) {
	ix, err := newIndex(c)
	if err != nil {
		return nil, err
	}
	s := &FixtureSource{ix: ix, urls: urls}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Page implements Source.
func (s *FixtureSource) Page(ctx context.Context, i intent.Intent) (*intent.Page, error) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch v := i.(type) {
	case intent.GroupingPageIntent:
		return s.grouping(v)
	case intent.ProductPageIntent:
		return s.product(v)
	case intent.DeveloperPageIntent:
		return s.developer(v)
	case intent.SearchResultsPageIntent:
		return s.search(v)
	case intent.RoomPageIntent:
		return s.room(v)
	case intent.AccountPageIntent:
		return s.account(v)
	default:
		return nil, fmt.Errorf("fixture source: unsupported intent %T", i)
	}
}

func (s *FixtureSource) grouping(i intent.GroupingPageIntent) (*intent.Page, error) {
	g, ok := s.ix.groupings[i.Name]
	if !ok {
		return nil, output.ErrNotFound("grouping", i.Name)
	}
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, "")
	if err != nil {
		return nil, err
	}

	page := &intent.Page{
		Kind:         intent.PageGrouping,
		Title:        g.Title,
		CanonicalURL: canonical,
		Metrics:      pageMetrics(g.Name, "Grouping", i.Locale),
	}
	for _, spec := range g.Shelves {
		shelf := intent.Shelf{Title: spec.Title}
		apps, err := s.appLockups(l, spec.Apps)
		if err != nil {
			return nil, err
		}
		shelf.Items = append(shelf.Items, apps...)
		for _, id := range spec.Rooms {
			r := s.ix.rooms[id]
			lockup, err := l.room(r.ID, r.Title, r.Modal)
			if err != nil {
				return nil, err
			}
			shelf.Items = append(shelf.Items, lockup)
		}
		page.Shelves = append(page.Shelves, shelf)
	}
	return page, nil
}

func (s *FixtureSource) product(i intent.ProductPageIntent) (*intent.Page, error) {
	a, ok := s.ix.apps[i.ID]
	if !ok {
		return nil, output.ErrNotFound("app", i.ID)
	}
	dev := s.ix.developers[a.Developer]
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, a.Slug)
	if err != nil {
		return nil, err
	}

	devLockup, err := l.developer(dev.ID, dev.Name, dev.Slug)
	if err != nil {
		return nil, err
	}
	var more []string
	for _, other := range s.appsBy(dev.ID) {
		if other != a.ID {
			more = append(more, other)
		}
	}
	moreLockups, err := s.appLockups(l, more)
	if err != nil {
		return nil, err
	}

	page := &intent.Page{
		Kind:         intent.PageProduct,
		Title:        a.Name,
		CanonicalURL: canonical,
		Description:  a.Description,
		Shelves:      []intent.Shelf{{Title: "Developer", Items: []intent.Lockup{devLockup}}},
		Metrics:      pageMetrics(a.ID, "Software", i.Locale),
	}
	if len(moreLockups) > 0 {
		page.Shelves = append(page.Shelves, intent.Shelf{Title: "More by " + dev.Name, Items: moreLockups})
	}
	return page, nil
}

func (s *FixtureSource) developer(i intent.DeveloperPageIntent) (*intent.Page, error) {
	dev, ok := s.ix.developers[i.ID]
	if !ok {
		return nil, output.ErrNotFound("developer", i.ID)
	}
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, dev.Slug)
	if err != nil {
		return nil, err
	}
	apps, err := s.appLockups(l, s.appsBy(dev.ID))
	if err != nil {
		return nil, err
	}
	return &intent.Page{
		Kind:         intent.PageDeveloper,
		Title:        dev.Name,
		CanonicalURL: canonical,
		Description:  dev.Description,
		Shelves:      []intent.Shelf{{Title: "Apps", Items: apps}},
		Metrics:      pageMetrics(dev.ID, "Developer", i.Locale),
	}, nil
}

func (s *FixtureSource) search(i intent.SearchResultsPageIntent) (*intent.Page, error) {
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, "")
	if err != nil {
		return nil, err
	}
	page := &intent.Page{
		Kind:         intent.PageSearch,
		Title:        fmt.Sprintf("Results for %q", i.Term),
		CanonicalURL: canonical,
		Metrics:      pageMetrics("search", "Search", i.Locale),
	}

	// Casers are stateful; each search gets its own.
	fold := cases.Fold()
	term := fold.String(strings.TrimSpace(i.Term))
	if term == "" {
		return page, nil
	}
	matches := func(fields ...string) bool {
		for _, f := range fields {
			if strings.Contains(fold.String(f), term) {
				return true
			}
		}
		return false
	}

	apps := intent.Shelf{Title: "Apps"}
	devs := intent.Shelf{Title: "Developers"}
	for _, d := range s.allDevelopers() {
		if matches(d.Name) {
			lockup, err := l.developer(d.ID, d.Name, d.Slug)
			if err != nil {
				return nil, err
			}
			devs.Items = append(devs.Items, lockup)
		}
	}
	for _, a := range s.allApps() {
		if matches(a.Name, a.Subtitle, s.ix.developers[a.Developer].Name) {
			lockup, err := l.app(a.ID, a.Name, a.Subtitle, a.Slug)
			if err != nil {
				return nil, err
			}
			apps.Items = append(apps.Items, lockup)
		}
	}
	for _, shelf := range []intent.Shelf{apps, devs} {
		if len(shelf.Items) > 0 {
			page.Shelves = append(page.Shelves, shelf)
		}
	}
	return page, nil
}

func (s *FixtureSource) room(i intent.RoomPageIntent) (*intent.Page, error) {
	r, ok := s.ix.rooms[i.ID]
	if !ok {
		return nil, output.ErrNotFound("room", i.ID)
	}
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, "")
	if err != nil {
		return nil, err
	}
	apps, err := s.appLockups(l, r.Apps)
	if err != nil {
		return nil, err
	}
	kind := intent.PageRoom
	if r.Layout == LayoutGeneric {
		kind = intent.PageGeneric
	}
	return &intent.Page{
		Kind:         kind,
		Title:        r.Title,
		CanonicalURL: canonical,
		Description:  r.Description,
		Shelves:      []intent.Shelf{{Title: r.Title, Items: apps}},
		Metrics:      pageMetrics(r.ID, "Room", i.Locale),
	}, nil
}

func (s *FixtureSource) account(i intent.AccountPageIntent) (*intent.Page, error) {
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, "")
	if err != nil {
		return nil, err
	}
	return &intent.Page{
		Kind:         intent.PageGeneric,
		Title:        "Account",
		CanonicalURL: canonical,
		Description:  "Signed in to the **" + strings.ToUpper(i.Storefront) + "** storefront.",
		Metrics:      pageMetrics("account", "Account", i.Locale),
	}, nil
}

func (s *FixtureSource) appLockups(l linker, ids []string) ([]intent.Lockup, error) {
	out := make([]intent.Lockup, 0, len(ids))
	for _, id := range ids {
		a := s.ix.apps[id]
		lockup, err := l.app(a.ID, a.Name, a.Subtitle, a.Slug)
		if err != nil {
			return nil, err
		}
		out = append(out, lockup)
	}
	return out, nil
}

func (s *FixtureSource) allApps() []*App {
	out := make([]*App, len(s.ix.catalog.Apps))
	for i := range s.ix.catalog.Apps {
		out[i] = &s.ix.catalog.Apps[i]
	}
	return out
}

func (s *FixtureSource) allDevelopers() []*Developer {
	out := make([]*Developer, len(s.ix.catalog.Developers))
	for i := range s.ix.catalog.Developers {
		out[i] = &s.ix.catalog.Developers[i]
	}
	return out
}

// appsBy returns the developer's app ids in catalog order.
func (s *FixtureSource) appsBy(devID string) []string {
	var ids []string
	for _, a := range s.allApps() {
		if a.Developer == devID {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
