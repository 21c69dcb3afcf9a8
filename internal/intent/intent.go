// Package intent defines the storefront's navigation data model: intents
// (what content to load), actions (requests to transition the UI), and
// pages (the resolved view-models).
package intent

// Kind is the discriminant tag shared by every intent.
type Kind string

// Intent kinds.
const (
	KindRouteURL      Kind = "RouteUrlIntent"
	KindGroupingPage  Kind = "GroupingPageIntent"
	KindProductPage   Kind = "ProductPageIntent"
	KindDeveloperPage Kind = "DeveloperPageIntent"
	KindSearchResults Kind = "SearchResultsPageIntent"
	KindRoomPage      Kind = "RoomPageIntent"
	KindAccountPage   Kind = "AccountPageIntent"
)

// Intent is an opaque, serializable description of content to load.
// Implementations are comparable structs, so == is structural identity.
type Intent interface {
	Kind() Kind
}

// Locale identifies the storefront and language an intent is scoped to.
type Locale struct {
	Storefront string `json:"storefront"`
	Language   string `json:"language,omitempty"`
}

// RouteURLIntent asks the runtime to turn a URL into a destination intent.
type RouteURLIntent struct {
	URL string `json:"url"`
}

func (RouteURLIntent) Kind() Kind { return KindRouteURL }

// GroupingPageIntent loads a top-level tab such as "today" or "games".
type GroupingPageIntent struct {
	Locale
	Name string `json:"name"`
}

func (GroupingPageIntent) Kind() Kind { return KindGroupingPage }

// ProductPageIntent loads a single app's product page.
type ProductPageIntent struct {
	Locale
	ID string `json:"id"`
}

func (ProductPageIntent) Kind() Kind { return KindProductPage }

// DeveloperPageIntent loads a developer's page.
type DeveloperPageIntent struct {
	Locale
	ID string `json:"id"`
}

func (DeveloperPageIntent) Kind() Kind { return KindDeveloperPage }

// SearchResultsPageIntent loads search results for a term.
type SearchResultsPageIntent struct {
	Locale
	Term string `json:"term"`
}

func (SearchResultsPageIntent) Kind() Kind { return KindSearchResults }

// RoomPageIntent loads a curated "see all" room.
type RoomPageIntent struct {
	Locale
	ID string `json:"id"`
}

func (RoomPageIntent) Kind() Kind { return KindRoomPage }

// AccountPageIntent loads the signed-in account page. It depends on the
// server session and is never rendered client-side.
type AccountPageIntent struct {
	Locale
}

func (AccountPageIntent) Kind() Kind { return KindAccountPage }

// RequiresServerSide reports whether navigating to i must leave the
// single-page app and perform a full browser navigation.
func RequiresServerSide(i Intent) bool {
	if i == nil {
		return false
	}
	return i.Kind() == KindAccountPage
}

// LocaleOf returns the storefront locale carried by i, if any.
func LocaleOf(i Intent) (Locale, bool) {
	switch v := i.(type) {
	case GroupingPageIntent:
		return v.Locale, true
	case ProductPageIntent:
		return v.Locale, true
	case DeveloperPageIntent:
		return v.Locale, true
	case SearchResultsPageIntent:
		return v.Locale, true
	case RoomPageIntent:
		return v.Locale, true
	case AccountPageIntent:
		return v.Locale, true
	default:
		return Locale{}, false
	}
}
