package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/sagarc03/stowfront"
)

// Response is the value a route produces. Header is owned by the Response;
// handlers build a fresh one rather than mutating upstream headers in place.
// Exactly one of body and stream is set.
type Response struct {
	Status int
	Header http.Header

	body   []byte
	stream io.ReadCloser
}

// NewBufferedResponse builds a response around an in-memory body.
func NewBufferedResponse(status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{Status: status, Header: header, body: body}
}

// NewStreamResponse builds a response that copies body to the client.
func NewStreamResponse(status int, header http.Header, body io.ReadCloser) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{Status: status, Header: header, stream: body}
}

// Buffered returns the body when it is held in memory.
func (r *Response) Buffered() ([]byte, bool) {
	return r.body, r.stream == nil
}

// ReadBody returns the whole body, draining a stream. Meant for tests and
// small responses.
func (r *Response) ReadBody() ([]byte, error) {
	if r.stream == nil {
		return r.body, nil
	}
	defer func() { _ = r.stream.Close() }()
	return io.ReadAll(r.stream)
}

func (r *Response) close() {
	if r.stream != nil {
		_ = r.stream.Close()
	}
}

func (r *Response) isRedirect() bool {
	return r.Status >= 300 && r.Status < 400
}

// statusForError maps a routing or backend error to the status shown to the
// client. Backend answers keep their status; transport trouble is a bad gateway.
func statusForError(err error) int {
	var be *stowfront.BackendError
	switch {
	case errors.As(err, &be) && be.StatusCode >= 400:
		return be.StatusCode
	case errors.Is(err, stowfront.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, stowfront.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, stowfront.ErrUpstreamUnavailable),
		errors.Is(err, stowfront.ErrUpstreamProtocol),
		errors.Is(err, stowfront.ErrBackendRequestFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// statusForCredentialError maps a failed credential acquisition. Retryable
// upstream trouble is 503, everything else 500.
func statusForCredentialError(err error) int {
	if errors.Is(err, stowfront.ErrUpstreamUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
