package apiclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnauthorized means the session could not be (re)authorized: no refresh
// token was available, the refresh call failed, or the refreshed token was
// rejected too. The session should be treated as logged out.
var ErrUnauthorized = errors.New("unauthorized: login required")

// RemoteError is a non-2xx answer from the API other than a 401 on an
// authorized call (404, 422, 500, ...). It is never retried.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api returned status %d", e.Status)
}

// NetworkError indicates a transport failure: connection refused, DNS,
// timeout or cancellation. The caller may retry.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Canceled():
		return fmt.Sprintf("%s %s: request canceled", e.Method, e.URL)
	case e.Timeout():
		return fmt.Sprintf("%s %s: request timed out", e.Method, e.URL)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request hit its deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// Canceled reports whether the caller abandoned the request.
func (e *NetworkError) Canceled() bool {
	return errors.Is(e.Err, context.Canceled)
}

// ValidationError is raised before any network call when a payload or
// filter fails local checks. Fields maps field name to a readable reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
