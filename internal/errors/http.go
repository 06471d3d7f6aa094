package errors

import (
	stdErrors "errors"
	"fmt"
)

// TransportError is a failure below HTTP: connection refused, reset, DNS or timeout.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a TransportError for url.
func NewTransportError(url string, err error) *TransportError {
	return &TransportError{URL: url, Err: err}
}

// IsTransportError reports whether err is a TransportError (even when wrapped).
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return stdErrors.As(err, &transportErr)
}

// HTTPStatusError represents a non-2xx response from the catalogue or image host.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string // first bytes of the response body if available
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d fetching %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// NewHTTPStatusError creates a new HTTPStatusError
func NewHTTPStatusError(url string, statusCode int, body string) *HTTPStatusError {
	return &HTTPStatusError{URL: url, StatusCode: statusCode, Body: body}
}

// IsServerError reports whether err carries a 5xx status.
func IsServerError(err error) bool {
	var statusErr *HTTPStatusError
	return stdErrors.As(err, &statusErr) && statusErr.StatusCode >= 500
}

// IsClientError reports whether err carries a 4xx status.
func IsClientError(err error) bool {
	var statusErr *HTTPStatusError
	return stdErrors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500
}
