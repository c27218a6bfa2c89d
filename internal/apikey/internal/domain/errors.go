package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for key resolution. Every failure returned by the
// directory client or the resolve service matches exactly one of these under
// errors.Is.
var (
	// ErrBadRequest means required input was missing.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound means the directory answered 404.
	ErrNotFound = errors.New("not found")

	// ErrUpstream means the directory answered with any other non-success
	// status, or with a body that could not be decoded.
	ErrUpstream = errors.New("upstream error")

	// ErrTransport means the directory could not be reached.
	ErrTransport = errors.New("transport error")
)

// Error kinds reported to HTTP callers.
const (
	KindBadRequest = "bad_request"
	KindNotFound   = "not_found"
	KindUpstream   = "upstream"
	KindTransport  = "transport"
	KindInternal   = "internal"
)

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 256

// StatusError is a non-success response from the key directory.
type StatusError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusNotFound {
		return fmt.Sprintf("%s not found", e.URL)
	}
	msg := fmt.Sprintf("%s %s: upstream returned status %d", e.Op, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps the status to ErrNotFound or ErrUpstream.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrUpstream
}

// NewStatusError builds a StatusError, trimming the body to a loggable size.
func NewStatusError(op, url string, statusCode int, body []byte) *StatusError {
	b := string(body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody] + "..."
	}
	return &StatusError{Op: op, URL: url, StatusCode: statusCode, Body: b}
}

// Kind classifies err into one of the Kind constants.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}
