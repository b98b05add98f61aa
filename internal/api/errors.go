// Package api provides the JSON/HTTP client for the remote workout API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/kimhsiao/fitsync/internal/models"
)

// ErrNotFound is returned when the server reports 404 for an update,
// delete, or draft fetch. For mutations the reconciler treats this as
// "already gone" rather than a failure.
var ErrNotFound = errors.New("not found on server")

// ConflictError is returned for a structured 409 response. It carries the
// server's version of the workout; conflict resolution is server-wins, so
// the caller accepts ServerVersion unconditionally.
type ConflictError struct {
	ServerVersion *models.Workout
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.ServerVersion != nil {
		return fmt.Sprintf("server holds a different version of %s", e.ServerVersion.ID)
	}
	return "server holds a different version"
}

// AsConflict extracts a ConflictError from an error chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// StatusError is returned for any unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// IsTransient classifies an error as retryable: network-level failures,
// timeouts, and 5xx responses. Everything the next pass might plausibly
// succeed at.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}

	return false
}

// IsPermanent classifies an error as non-retryable: 4xx responses other
// than the 404/409 cases that carry their own semantics. Validation and
// authorization failures will not resolve with retry.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusBadRequest &&
			statusErr.StatusCode < http.StatusInternalServerError
	}

	return false
}
