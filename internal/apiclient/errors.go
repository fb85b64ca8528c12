// errors.go - Structured errors for backend calls
package apiclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error codes
const (
	CodeHTTP      = "HTTP_ERROR"
	CodeTransport = "TRANSPORT_ERROR"
	CodeDecode    = "DECODE_ERROR"
)

// maxDetailsLen bounds the response excerpt kept on HTTP errors.
const maxDetailsLen = 512

// Error describes a failed backend call
type Error struct {
	Op      string // "create upload", "get upload", "list uploads"
	Status  int    // HTTP status, 0 when no response was received
	Code    string
	Message string
	Details string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// newStatusError creates an error for a non-2xx response
func newStatusError(op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailsLen+1))
	details := strings.TrimSpace(string(body))
	if len(details) > maxDetailsLen {
		details = details[:maxDetailsLen] + "..."
	}
	return &Error{
		Op:      op,
		Status:  resp.StatusCode,
		Code:    CodeHTTP,
		Message: fmt.Sprintf("unexpected status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Details: details,
	}
}

// newTransportError creates an error for a request that got no response
func newTransportError(op string, cause error) *Error {
	return &Error{
		Op:      op,
		Code:    CodeTransport,
		Message: "request failed",
		Details: cause.Error(),
		Err:     cause,
	}
}

// newDecodeError creates an error for an unusable response body
func newDecodeError(op string, status int, cause error) *Error {
	return &Error{
		Op:      op,
		Status:  status,
		Code:    CodeDecode,
		Message: "invalid response body",
		Details: cause.Error(),
		Err:     cause,
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
