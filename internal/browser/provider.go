package browser

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	// ErrPageNotFound is returned by Open when the page responds with an
	// HTTP error status. It signals that the requested symbol does not exist.
	ErrPageNotFound = errors.New("page not found")

	// ErrWaitTimeout is returned by WaitText when the element did not
	// appear within the timeout.
	ErrWaitTimeout = errors.New("element wait timeout")
)

// Session is a live page bound to one symbol.
type Session interface {
	// WaitText waits up to timeout for the element matching selector to
	// become visible and returns its text content.
	WaitText(ctx context.Context, selector string, timeout time.Duration) (string, error)

	// Close releases the underlying page. Safe to call once per session.
	Close(ctx context.Context) error
}

// Provider opens rendered pages. Open navigates a fresh session to url and
// fails with ErrPageNotFound on an HTTP error status.
type Provider interface {
	Open(ctx context.Context, url string) (Session, error)
}
