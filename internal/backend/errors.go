package backend

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// APIError is returned for non-2xx backend responses.
// It supports errors.Is matching by status code and errors.As extraction.
type APIError struct {
	StatusCode int
	Message    string
}

// Error returns the formatted error string.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s", e.StatusCode, e.Message)
}

// Is supports errors.Is matching by status code.
// ErrServer (500) matches any 5xx status code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	if t.StatusCode == 500 && e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == t.StatusCode
}

// Sentinel errors for common HTTP error status codes.
var (
	ErrBadRequest   = &APIError{StatusCode: 400, Message: "bad request"}
	ErrUnauthorized = &APIError{StatusCode: 401, Message: "unauthorized"}
	ErrNotFound     = &APIError{StatusCode: 404, Message: "not found"}
	ErrServer       = &APIError{StatusCode: 500, Message: "server error"}
)

// ErrProtocol marks a 2xx response that lacks a required field or cannot be decoded.
// Calls failing this way are not retried.
var ErrProtocol = errors.New("backend: protocol error")

// ErrRetryExhausted is matched by every error returned after the retry
// budget of a call ran out.
var ErrRetryExhausted = errors.New("backend: retry exhausted")

// maxErrorBody is the maximum number of bytes read from an error response body.
const maxErrorBody = 4096

// errorFromResponse creates an *APIError from an HTTP response.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
	}
}
