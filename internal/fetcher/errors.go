package fetcher

import (
	"errors"
	"fmt"
)

// ErrAttemptTimeout marks an attempt cancelled at its per-attempt deadline.
var ErrAttemptTimeout = errors.New("request attempt timed out")

// StatusError is a non-2xx response. Body holds a truncated excerpt.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// FetchError is the terminal error after all attempts failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
