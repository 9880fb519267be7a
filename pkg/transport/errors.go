package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTokenExpired is returned before any network call when the configured
// bearer token is a JWT whose exp claim is in the past.
var ErrTokenExpired = errors.New("bearer token expired")

// RequestError is returned for every response whose status is not 200.
// Body holds the raw response body; legacy and newer endpoints return
// different error shapes so it is not parsed.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err wraps a 404 RequestError.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by a wrapped RequestError, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

// retryable reports whether a status code is covered by the retry policy.
func retryable(status int) bool {
	switch status {
	case http.StatusNotImplemented,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// idempotent reports whether requests with this method may be retried.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
