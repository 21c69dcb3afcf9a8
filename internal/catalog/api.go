package catalog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/basecamp/storefront/internal/api"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/richtext"
)

// Getter is the part of api.Client the API source needs.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (*api.Response, error)
}

// APISource serves pages from the media API.
type APISource struct {
	client Getter
	urls   URLBuilder
}

// NewAPISource creates a source backed by client.
func NewAPISource(client Getter, urls URLBuilder) *APISource {
	return &APISource{client: client, urls: urls}
}

// Page implements Source.
func (s *APISource) Page(ctx context.Context, i intent.Intent) (*intent.Page, error) {
	switch v := i.(type) {
	case intent.GroupingPageIntent:
		return s.grouping(ctx, v)
	case intent.ProductPageIntent:
		return s.product(ctx, v)
	case intent.DeveloperPageIntent:
		return s.developer(ctx, v)
	case intent.SearchResultsPageIntent:
		return s.search(ctx, v)
	case intent.RoomPageIntent:
		return s.room(ctx, v)
	case intent.AccountPageIntent:
		return s.account(ctx, v)
	default:
		return nil, fmt.Errorf("api source: unsupported intent %T", i)
	}
}

// fetch GETs path and returns the first resource in "data".
func (s *APISource) fetch(ctx context.Context, loc intent.Locale, path, resource, id string) (gjson.Result, error) {
	query := url.Values{}
	if loc.Language != "" {
		query.Set("l", loc.Language)
	}
	resp, err := s.client.Get(ctx, path, query)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(resp.Data) {
		return gjson.Result{}, output.ErrAPI(resp.StatusCode, fmt.Sprintf("Invalid JSON for %s %s", resource, id))
	}
	data := gjson.GetBytes(resp.Data, "data.0")
	if !data.Exists() {
		return gjson.Result{}, output.ErrNotFound(resource, id)
	}
	return data, nil
}

// lockups converts related resources to lockups by their type.
func (s *APISource) lockups(l linker, items gjson.Result) ([]intent.Lockup, error) {
	var out []intent.Lockup
	var err error
	items.ForEach(func(_, item gjson.Result) bool {
		var lockup intent.Lockup
		id := item.Get("id").String()
		attrs := item.Get("attributes")
		switch item.Get("type").String() {
		case "apps":
			lockup, err = l.app(id, attrs.Get("name").String(), attrs.Get("subtitle").String(), attrs.Get("slug").String())
		case "developers":
			lockup, err = l.developer(id, attrs.Get("name").String(), attrs.Get("slug").String())
		case "rooms":
			lockup, err = l.room(id, attrs.Get("title").String(), attrs.Get("presentation").String() == "modal")
		default:
			return true
		}
		if err != nil {
			return false
		}
		out = append(out, lockup)
		return true
	})
	return out, err
}

func (s *APISource) grouping(ctx context.Context, i intent.GroupingPageIntent) (*intent.Page, error) {
	data, err := s.fetch(ctx, i.Locale, "/v1/editorial/"+url.PathEscape(i.Storefront)+"/groupings/"+url.PathEscape(i.Name), "grouping", i.Name)
	if err != nil {
		return nil, err
	}
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, "")
	if err != nil {
		return nil, err
	}
	page := &intent.Page{
		Kind:         intent.PageGrouping,
		Title:        data.Get("attributes.title").String(),
		CanonicalURL: canonical,
		Metrics:      pageMetrics(i.Name, "Grouping", i.Locale),
	}
	for _, shelf := range data.Get("relationships.shelves.data").Array() {
		items, err := s.lockups(l, shelf.Get("relationships.contents.data"))
		if err != nil {
			return nil, err
		}
		page.Shelves = append(page.Shelves, intent.Shelf{Title: shelf.Get("attributes.title").String(), Items: items})
	}
	return page, nil
}

func (s *APISource) product(ctx context.Context, i intent.ProductPageIntent) (*intent.Page, error) {
	data, err := s.fetch(ctx, i.Locale, "/v1/catalog/"+url.PathEscape(i.Storefront)+"/apps/"+url.PathEscape(i.ID), "app", i.ID)
	if err != nil {
		return nil, err
	}
	l := linker{urls: s.urls, loc: i.Locale}
	attrs := data.Get("attributes")
	canonical, err := l.canonical(i, attrs.Get("slug").String())
	if err != nil {
		return nil, err
	}
	page := &intent.Page{
		Kind:         intent.PageProduct,
		Title:        attrs.Get("name").String(),
		CanonicalURL: canonical,
		Description:  richtext.FromHTML(attrs.Get("description").String()),
		Metrics:      pageMetrics(i.ID, "Software", i.Locale),
	}
	devs, err := s.lockups(l, data.Get("relationships.developer.data"))
	if err != nil {
		return nil, err
	}
	if len(devs) > 0 {
		page.Shelves = append(page.Shelves, intent.Shelf{Title: "Developer", Items: devs})
	}
	return page, nil
}

func (s *APISource) developer(ctx context.Context, i intent.DeveloperPageIntent) (*intent.Page, error) {
	data, err := s.fetch(ctx, i.Locale, "/v1/catalog/"+url.PathEscape(i.Storefront)+"/developers/"+url.PathEscape(i.ID), "developer", i.ID)
	if err != nil {
		return nil, err
	}
	l := linker{urls: s.urls, loc: i.Locale}
	attrs := data.Get("attributes")
	canonical, err := l.canonical(i, attrs.Get("slug").String())
	if err != nil {
		return nil, err
	}
	apps, err := s.lockups(l, data.Get("relationships.apps.data"))
	if err != nil {
		return nil, err
	}
	return &intent.Page{
		Kind:         intent.PageDeveloper,
		Title:        attrs.Get("name").String(),
		CanonicalURL: canonical,
		Description:  richtext.FromHTML(attrs.Get("description").String()),
		Shelves:      []intent.Shelf{{Title: "Apps", Items: apps}},
		Metrics:      pageMetrics(i.ID, "Developer", i.Locale),
	}, nil
}

func (s *APISource) search(ctx context.Context, i intent.SearchResultsPageIntent) (*intent.Page, error) {
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
	if i.Term == "" {
		return page, nil
	}

	query := url.Values{"term": {i.Term}, "types": {"apps,developers"}}
	if i.Language != "" {
		query.Set("l", i.Language)
	}
	resp, err := s.client.Get(ctx, "/v1/catalog/"+url.PathEscape(i.Storefront)+"/search", query)
	if err != nil {
		return nil, err
	}
	results := gjson.GetBytes(resp.Data, "results")
	for _, group := range []struct{ key, title string }{{"apps", "Apps"}, {"developers", "Developers"}} {
		items, err := s.lockups(l, results.Get(group.key+".data"))
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			page.Shelves = append(page.Shelves, intent.Shelf{Title: group.title, Items: items})
		}
	}
	return page, nil
}

func (s *APISource) room(ctx context.Context, i intent.RoomPageIntent) (*intent.Page, error) {
	data, err := s.fetch(ctx, i.Locale, "/v1/editorial/"+url.PathEscape(i.Storefront)+"/rooms/"+url.PathEscape(i.ID), "room", i.ID)
	if err != nil {
		return nil, err
	}
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, "")
	if err != nil {
		return nil, err
	}
	attrs := data.Get("attributes")
	items, err := s.lockups(l, data.Get("relationships.contents.data"))
	if err != nil {
		return nil, err
	}
	kind := intent.PageRoom
	if attrs.Get("layout").String() == LayoutGeneric {
		kind = intent.PageGeneric
	}
	title := attrs.Get("title").String()
	return &intent.Page{
		Kind:         kind,
		Title:        title,
		CanonicalURL: canonical,
		Description:  richtext.FromHTML(attrs.Get("description").String()),
		Shelves:      []intent.Shelf{{Title: title, Items: items}},
		Metrics:      pageMetrics(i.ID, "Room", i.Locale),
	}, nil
}

func (s *APISource) account(ctx context.Context, i intent.AccountPageIntent) (*intent.Page, error) {
	data, err := s.fetch(ctx, i.Locale, "/v1/me/account", "account", "me")
	if err != nil {
		return nil, err
	}
	l := linker{urls: s.urls, loc: i.Locale}
	canonical, err := l.canonical(i, "")
	if err != nil {
		return nil, err
	}
	return &intent.Page{
		Kind:         intent.PageGeneric,
		Title:        "Account",
		CanonicalURL: canonical,
		Description:  "Signed in as **" + data.Get("attributes.name").String() + "**.",
		Metrics:      pageMetrics("account", "Account", i.Locale),
	}, nil
}
