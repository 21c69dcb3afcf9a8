package flow

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/basecamp/storefront/internal/intent"
)

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// PageFetchError annotates a failed page fetch for the UI layer.
type PageFetchError struct {
	Err    error
	Intent intent.Intent
	// RetryAction re-runs the navigation. It is nil for 404s and when no
	// action produced the fetch.
	RetryAction *intent.FlowAction
	IsFirstPage bool
}

func (e *PageFetchError) Error() string {
	kind := intent.Kind("unknown")
	if e.Intent != nil {
		kind = e.Intent.Kind()
	}
	return fmt.Sprintf("fetch %s: %v", kind, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// StatusCode returns the wrapped HTTP status, or 0.
func (e *PageFetchError) StatusCode() int {
	return statusOf(e.Err)
}

func statusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

func annotate(err error, dest intent.Intent, action *intent.FlowAction, isFirstPage bool) error {
	pfe := &PageFetchError{Err: err, Intent: dest, IsFirstPage: isFirstPage}
	if action != nil && statusOf(err) != http.StatusNotFound {
		retry := *action
		pfe.RetryAction = &retry
	}
	return pfe
}

// NotFoundError is delivered when a URL cannot be routed to a destination.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no page for %s", e.URL)
}

// StatusCode is always 404.
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }
