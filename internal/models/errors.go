package models

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned by Acquire after the pool has been shut down.
	ErrPoolClosed = errors.New("session pool is closed")

	// ErrNoImages marks a page where the image selector matched nothing.
	// It is logged as a warning and never returned to callers.
	ErrNoImages = errors.New("no matching images on page")

	// ErrEmptyPayload is wrapped in a FetchError when a fetch returns no bytes.
	ErrEmptyPayload = errors.New("empty response body")
)

// StructuralError aborts a whole run before any session work begins.
type StructuralError struct {
	Field   string
	Message string
}

func (e *StructuralError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid input field %q: %s", e.Field, e.Message)
}

// SessionCreationError means the automation engine failed to start.
type SessionCreationError struct {
	Driver string
	Err    error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("failed to create %s session: %v", e.Driver, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// FetchError is a per-item navigation or fetch failure.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the caller instead of being
// absorbed into aggregate counts.
func IsFatal(err error) bool {
	var se *StructuralError
	var ce *SessionCreationError
	return errors.As(err, &se) || errors.As(err, &ce)
}
