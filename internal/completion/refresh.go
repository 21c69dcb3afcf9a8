package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/routing"
)

// RefreshResult contains the outcome of a refresh.
type RefreshResult struct {
	Pages int
	Links int
	Err   error
}

// Refresher fills the cache from the tab pages of each storefront.
type Refresher struct {
	store *Store
	jet   *jet.Jet

	mu         sync.Mutex
	refreshing bool
}

// NewRefresher creates a refresher dispatching pages through j.
func NewRefresher(store *Store, j *jet.Jet) *Refresher {
	return &Refresher{store: store, jet: j}
}

// RefreshIfStale triggers a background refresh if the cache is stale.
// If a refresh is already in progress, this is a no-op.
func (r *Refresher) RefreshIfStale(maxAge time.Duration, storefronts []string) {
	if !r.store.IsStale(maxAge) {
		return
	}

	r.mu.Lock()
	if r.refreshing {
		r.mu.Unlock()
		return
	}
	r.refreshing = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.refreshing = false
			r.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Best effort: completions fall back to tab URLs.
		r.RefreshAll(ctx, storefronts)
	}()
}

// RefreshAll loads every tab page of storefronts in parallel and caches
// their links. Pages that fail are skipped; the cache keeps the links of
// the pages that loaded. The existing cache is kept when nothing loaded.
func (r *Refresher) RefreshAll(ctx context.Context, storefronts []string) RefreshResult {
	type tabResult struct {
		storefront string
		page       *intent.Page
		err        error
	}

	var urls []string
	var owners []string
	for _, sf := range storefronts {
		for _, tab := range routing.Tabs {
			urls = append(urls, "/"+sf+"/"+tab)
			owners = append(owners, sf)
		}
	}

	results := make([]tabResult, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = tabResult{storefront: owners[i]}
			route := r.jet.RouteURL(ctx, url)
			if route == nil {
				results[i].err = fmt.Errorf("%s: not routable", url)
				return
			}
			results[i].page, results[i].err = jet.DispatchPage(ctx, r.jet, route.Intent)
		}()
	}
	wg.Wait()

	var result RefreshResult
	var errs []error
	seen := make(map[string]bool)
	var links []CachedLink
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		result.Pages++
		for _, l := range res.page.Links() {
			if l.Action.PageURL == "" || seen[l.Action.PageURL] {
				continue
			}
			seen[l.Action.PageURL] = true
			links = append(links, CachedLink{URL: l.Action.PageURL, Title: l.Title, Storefront: res.storefront})
		}
	}
	result.Err = errors.Join(errs...)

	if result.Pages == 0 {
		return result
	}
	if err := r.store.UpdateLinks(links); err != nil {
		result.Err = errors.Join(result.Err, err)
		return result
	}
	result.Links = len(links)
	return result
}

// IsRefreshing returns true if a background refresh is in progress.
func (r *Refresher) IsRefreshing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshing
}
