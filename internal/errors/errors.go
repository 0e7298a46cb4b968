// Package errors defines the error bodies returned by the HTTP surface and the
// translator that turns handler failures into them.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// InternalErrorCode marks the generic 500 body
const InternalErrorCode = "INTERNAL_ERROR"

// APIError is an error that is safe to show to clients. Everything else is
// rendered as the generic internal error.
type APIError struct {
	StatusCode int          `json:"-"`
	Detail     string       `json:"detail"`
	ErrorCode  string       `json:"error_code,omitempty"`
	Errors     []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Detail)
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given status and detail
func New(statusCode int, detail string) *APIError {
	return &APIError{StatusCode: statusCode, Detail: detail}
}

// NewWithCode creates an APIError carrying a machine readable code
func NewWithCode(statusCode int, errorCode, detail string) *APIError {
	return &APIError{StatusCode: statusCode, Detail: detail, ErrorCode: errorCode}
}

// NotImplemented is returned by stub endpoints
func NotImplemented(detail string) *APIError {
	return New(http.StatusNotImplemented, detail)
}

// Predefined errors
var (
	ErrInvalidHost         = New(http.StatusBadRequest, "Invalid host header")
	ErrNotFound            = New(http.StatusNotFound, "Not Found")
	ErrMethodNotAllowed    = New(http.StatusMethodNotAllowed, "Method Not Allowed")
	ErrRateLimitExceeded   = NewWithCode(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrTimeout             = NewWithCode(http.StatusGatewayTimeout, "TIMEOUT", "Request timeout")
	ErrServiceUnavailable  = NewWithCode(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service unavailable")
	ErrInternal            = NewWithCode(http.StatusInternalServerError, InternalErrorCode, "Internal server error")
	ErrUnprocessableEntity = NewWithCode(http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Request validation failed")
)

// Write renders err as JSON. It is for code paths that run outside a chi
// handler and so cannot use the ErrorHandler.
func Write(w http.ResponseWriter, r *http.Request, err *APIError) {
	_ = render.Render(w, r, err)
}
