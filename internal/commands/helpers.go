package commands

import (
	"slices"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/routing"
)

// sortedStorefronts returns the router's storefront IDs in order.
func sortedStorefronts(app *appctx.App) []string {
	return storefrontIDs(app.Router)
}

func storefrontIDs(router *routing.Router) []string {
	langs := router.Storefronts()
	ids := make([]string, 0, len(langs))
	for id := range langs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
