package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrDaemonNotRunning is returned when the daemon is not running
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the admin API is disabled
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when 404 is returned from the daemon
	ErrNotFound = errors.New("404 not found")

	// ErrUnauthorized is returned for a missing or invalid key
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the key is rate limited or used up
	ErrRateLimited = errors.New("rate limited")
)

// APIError is a non-2xx response of the daemon.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
	// Kind and Field are set for rejected diagnostic inputs.
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{}
	if err := json.Unmarshal(body, e); err != nil || e.Detail == "" {
		e.Detail = strings.TrimSpace(string(body))
	}
	e.StatusCode = status
	return e
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("got %d: %s (%s)", e.StatusCode, e.Detail, e.Kind)
	}
	return fmt.Sprintf("got %d: %s", e.StatusCode, e.Detail)
}

// Unwrap maps well-known statuses to the sentinel errors above.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
