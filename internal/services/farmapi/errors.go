package farmapi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries the HTTP status and server message of a failed call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("farm api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("farm api returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether repeating the request may succeed. Transport
// failures and timeouts carry no HTTP status and are always retryable;
// responses are retryable for 408, 429, and 5xx. Auth and validation
// rejections (4xx) are not: repeating them fails identically.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch {
	case apiErr.StatusCode == http.StatusRequestTimeout,
		apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// TransportFailure reports whether the request never reached the server:
// no HTTP status was obtained, so the failure says nothing about the item
// itself and everything about the connection.
func TransportFailure(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}

// Rejected reports whether the server definitively refused the request.
func Rejected(err error) bool {
	return err != nil && !Retryable(err)
}
