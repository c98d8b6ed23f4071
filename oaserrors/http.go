package oaserrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusCoder is implemented by errors that map onto an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// StatusOf returns the HTTP status carried by err or anything it wraps.
func StatusOf(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if status := sc.StatusCode(); status > 0 {
			return status, true
		}
	}
	return 0, false
}

// Location identifies where in a request a problem was found.
type Location struct {
	// In is the parameter location (path, query, header, cookie, server) or
	// "request"/"response" for bodies.
	In string `json:"in"`
	// Name is the parameter name, or "body".
	Name string `json:"name"`
	// DocPath is the JSON pointer into the contract of the schema that failed.
	DocPath string `json:"docPath"`
	// Path is the JSON pointer into the value that failed, relative to the
	// parameter or body root. Empty means the value itself.
	Path string `json:"path"`
}

// String renders the location as "in name path".
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	parts := []string{l.In}
	if l.Name != "" {
		parts = append(parts, l.Name)
	}
	if l.Path != "" {
		parts = append(parts, l.Path)
	}
	return strings.Join(parts, " ")
}

// Issue is one problem found while validating a request or response.
type Issue struct {
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
}

func (i Issue) String() string {
	if i.Location == nil {
		return i.Message
	}
	return fmt.Sprintf("%s (%s)", i.Message, i.Location)
}

// HTTPError is a request failure with a definite HTTP status.
type HTTPError struct {
	// Status is the HTTP status code (e.g., 401, 405)
	Status int
	// Message is the client-facing message
	Message string
	// Header holds headers to send with the error response (Allow, WWW-Authenticate)
	Header http.Header
	// Cause is the underlying error, if any
	Cause error
}

// NewHTTPError creates an HTTPError with the given status and message.
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

// Error returns a human-readable error message.
func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("http %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// StatusCode returns the HTTP status.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// Unwrap returns the underlying cause for error chaining.
func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

// ValidationError aggregates every issue found while validating one request
// (or one response). It is never returned with an empty Issues list.
type ValidationError struct {
	// Status is the HTTP status; 400 for requests, 500 for responses.
	Status int
	// Message summarizes the failure
	Message string
	// Issues lists each individual failure
	Issues []Issue
}

// NewValidationError creates a 400 ValidationError from issues.
func NewValidationError(issues ...Issue) *ValidationError {
	return &ValidationError{
		Status:  http.StatusBadRequest,
		Message: "Validation errors",
		Issues:  issues,
	}
}

// Error returns a human-readable error message.
func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation error"
	}
	if len(e.Issues) == 1 {
		return msg + ": " + e.Issues[0].String()
	}
	if len(e.Issues) > 1 {
		msg += fmt.Sprintf(" (%d issues): %s", len(e.Issues), e.Issues[0].String())
	}
	return msg
}

// StatusCode returns the HTTP status, defaulting to 400.
func (e *ValidationError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// Is reports whether target matches this error type.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
