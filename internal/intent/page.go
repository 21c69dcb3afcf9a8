package intent

import (
	"errors"
	"fmt"
)

// ErrMissingCanonicalURL is returned when a resolved page has no canonical
// URL. It indicates a broken page producer, not a runtime condition.
var ErrMissingCanonicalURL = errors.New("page resolved without a canonical URL")

// PageKind identifies the shape of a page view-model.
type PageKind string

const (
	PageGeneric   PageKind = "generic"
	PageGrouping  PageKind = "grouping"
	PageProduct   PageKind = "product"
	PageDeveloper PageKind = "developer"
	PageSearch    PageKind = "search"
	PageRoom      PageKind = "room"
)

// Page is the resolved content for a destination.
type Page struct {
	Kind         PageKind     `json:"kind"`
	Title        string       `json:"title"`
	CanonicalURL string       `json:"canonicalURL,omitempty"`
	Description  string       `json:"description,omitempty"`
	Shelves      []Shelf      `json:"shelves,omitempty"`
	Metrics      *PageMetrics `json:"pageMetrics,omitempty"`
}

// Shelf is a titled row of lockups.
type Shelf struct {
	Title string   `json:"title"`
	Items []Lockup `json:"items"`
}

// Lockup is a single tappable item on a shelf.
type Lockup struct {
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
	Action   FlowAction `json:"action"`
}

// PageMetrics holds the page-level fields metrics events are decorated with.
type PageMetrics struct {
	PageID   string            `json:"pageId"`
	PageType string            `json:"pageType"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// RequireCanonicalURL returns the page's canonical URL or
// ErrMissingCanonicalURL.
func (p *Page) RequireCanonicalURL() (string, error) {
	if p == nil {
		return "", fmt.Errorf("nil page: %w", ErrMissingCanonicalURL)
	}
	if p.CanonicalURL == "" {
		return "", fmt.Errorf("%s page %q: %w", p.Kind, p.Title, ErrMissingCanonicalURL)
	}
	return p.CanonicalURL, nil
}

// IsGeneric reports whether the page has the renderable generic shape
// modal presentation requires.
func (p *Page) IsGeneric() bool {
	return p != nil && p.Kind == PageGeneric && p.Title != ""
}

// Links returns every lockup on the page in shelf order.
func (p *Page) Links() []Lockup {
	if p == nil {
		return nil
	}
	var out []Lockup
	for _, s := range p.Shelves {
		out = append(out, s.Items...)
	}
	return out
}
