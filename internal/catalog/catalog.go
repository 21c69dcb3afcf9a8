// Package catalog resolves page intents to pages, from a YAML fixture or
// from the media API.
package catalog

import (
	"context"
	"fmt"

	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
)

// Source resolves a page intent.
type Source interface {
	Page(ctx context.Context, i intent.Intent) (*intent.Page, error)
}

// URLBuilder builds canonical storefront URLs. *routing.Router satisfies it.
type URLBuilder interface {
	URLFor(i intent.Intent, slug string) (string, error)
}

// PageKinds are the intent kinds a Source resolves.
var PageKinds = []intent.Kind{
	intent.KindGroupingPage,
	intent.KindProductPage,
	intent.KindDeveloperPage,
	intent.KindSearchResults,
	intent.KindRoomPage,
	intent.KindAccountPage,
}

// Register installs src as the controller for every page intent kind.
func Register(d *jet.Dispatcher, src Source) {
	for _, kind := range PageKinds {
		d.Register(kind, func(ctx context.Context, i intent.Intent) (any, error) {
			return src.Page(ctx, i)
		})
	}
}

// linker turns entity references into lockups scoped to one locale.
type linker struct {
	urls URLBuilder
	loc  intent.Locale
}

func (l linker) action(title string, dest intent.Intent, slug string) (intent.FlowAction, error) {
	u, err := l.urls.URLFor(dest, slug)
	if err != nil {
		return intent.FlowAction{}, err
	}
	return intent.FlowAction{Title: title, Destination: dest, PageURL: u}, nil
}

func (l linker) app(id, name, subtitle, slug string) (intent.Lockup, error) {
	a, err := l.action(name, intent.ProductPageIntent{Locale: l.loc, ID: id}, slug)
	return intent.Lockup{Title: name, Subtitle: subtitle, Action: a}, err
}

func (l linker) developer(id, name, slug string) (intent.Lockup, error) {
	a, err := l.action(name, intent.DeveloperPageIntent{Locale: l.loc, ID: id}, slug)
	return intent.Lockup{Title: name, Subtitle: "Developer", Action: a}, err
}

func (l linker) room(id, title string, modal bool) (intent.Lockup, error) {
	a, err := l.action(title, intent.RoomPageIntent{Locale: l.loc, ID: id}, "")
	if modal {
		a.PresentationContext = intent.PresentModal
	}
	return intent.Lockup{Title: title, Subtitle: "Collection", Action: a}, err
}

func (l linker) canonical(i intent.Intent, slug string) (string, error) {
	u, err := l.urls.URLFor(i, slug)
	if err != nil {
		return "", fmt.Errorf("canonical url for %s: %w", i.Kind(), err)
	}
	return u, nil
}

func pageMetrics(id, pageType string, loc intent.Locale) *intent.PageMetrics {
	return &intent.PageMetrics{
		PageID:   id,
		PageType: pageType,
		Fields: map[string]string{
			"storefront": loc.Storefront,
			"language":   loc.Language,
		},
	}
}
