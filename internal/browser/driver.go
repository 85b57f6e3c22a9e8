// Package browser owns the automation sessions: the drivers that launch them,
// the page primitives the orchestrators use, and the bounded session pool.
package browser

import (
	"context"
	"time"
)

// WaitPolicy tells a navigation when the page counts as loaded: once no network
// request has been in flight for Idle, bounded overall by Timeout.
type WaitPolicy struct {
	Idle    time.Duration
	Timeout time.Duration
}

// DefaultWaitPolicy mirrors a networkidle wait with a 30 second bound.
var DefaultWaitPolicy = WaitPolicy{Idle: 500 * time.Millisecond, Timeout: 30 * time.Second}

// Driver launches automation sessions.
type Driver interface {
	Name() string
	Launch(ctx context.Context) (Handle, error)
}

// Handle is one launched browsing context.
type Handle interface {
	// Navigate opens a new page at url and waits for quiescence.
	// The caller must Close the returned page on every path.
	Navigate(ctx context.Context, url string, wait WaitPolicy) (Page, error)
	// FetchBinary navigates to url and returns the response body.
	FetchBinary(ctx context.Context, url string, wait WaitPolicy) ([]byte, error)
	Terminate() error
}

// Page is an open page.
type Page interface {
	URL() string
	// QueryAll returns every element matching selector. No match is not an error.
	QueryAll(selector string) ([]Element, error)
	Close() error
}

// Element is a matched DOM element.
type Element interface {
	// Attribute returns nil when the attribute is absent.
	Attribute(name string) (*string, error)
}
