package browse

import (
	"github.com/basecamp/storefront/internal/flow"
	"github.com/basecamp/storefront/internal/intent"
)

// updateMsg carries a page promise from the flow core.
type updateMsg struct {
	flow.Update
}

// pageMsg is a settled page promise. Seq identifies the navigation that
// produced it; results from superseded navigations are dropped.
type pageMsg struct {
	seq  uint64
	page *intent.Page
	err  error
}

// notFoundMsg reports a URL that routes nowhere.
type notFoundMsg struct {
	url string
}

// modalMsg presents a page over the current one.
type modalMsg struct {
	page *intent.Page
}

// leftAppMsg reports a full navigation away from the storefront.
type leftAppMsg struct {
	url string
}

// frameMsg drives queued animation-frame callbacks.
type frameMsg struct{}

// outcomeMsg reports how an action dispatched from a key press went.
type outcomeMsg struct {
	what    string
	outcome intent.Outcome
}

// navMsg reports a back or forward request that had nowhere to go.
type navMsg struct {
	moved bool
}
