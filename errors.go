package stowfront

import (
	"errors"
	"net/http"
	"strconv"
)

var (
	// ErrNotFound is returned when a key, record or listing prefix does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable is returned when the backend or its authorization
	// endpoint cannot be reached or does not answer in time
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamProtocol is returned when a trusted upstream answers with an
	// unexpected shape
	ErrUpstreamProtocol = errors.New("upstream protocol error")
	// ErrPersistence is returned when the credential store cannot be read or written
	ErrPersistence = errors.New("persistence error")
	// ErrBackendRequestFailed matches any *BackendError
	ErrBackendRequestFailed = errors.New("backend request failed")
)

// BackendError is a non-2xx answer from the object or listing endpoints.
// Body is kept for logs only and must never reach a client.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return "backend request failed: " + strconv.Itoa(e.StatusCode)
}

// Is reports whether target is ErrBackendRequestFailed or a *BackendError
// with the same status code.
func (e *BackendError) Is(target error) bool {
	if target == ErrBackendRequestFailed {
		return true
	}
	var t *BackendError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the backend answered 404.
func (e *BackendError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
