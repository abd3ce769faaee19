package fetch

import (
	"errors"
	"fmt"
)

// ErrExhausted marks a request that failed on every retry attempt.
// Match with errors.Is; the concrete value carries the last attempt's error.
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError reports that all retry attempts failed on transient
// conditions. It matches ErrExhausted via errors.Is and unwraps to the
// last attempt's error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// UpstreamError is an application-level error reported inside the provider's
// payload (e.g. a non-200 "cod" field on an HTTP 200 response). It is never
// retried and never served from cache fallback.
type UpstreamError struct {
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return "upstream error, code " + e.Code
	}
	return fmt.Sprintf("upstream error %s: %s", e.Code, e.Message)
}

// Permanent marks an error that must surface as is: no retry at the fetcher
// level, no stale-cache fallback at the workflow level. Resolvers use it for
// "not found" results so they are neither cached negatively nor papered over
// with old data.
func Permanent(err error) error {
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// StatusError is a non-retriable HTTP status outside the 2xx range
// (rate limiting and the transient statuses are handled by the retry loop).
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}
