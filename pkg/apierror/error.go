package apierror

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

type envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// ToJSON converts the error to the standard failure envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(envelope{Success: false, Error: e})
	return data
}

func newError(status int, code, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return &Error{StatusCode: status, Code: code, Message: message}
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return newError(http.StatusBadRequest, "BAD_REQUEST", message, "Bad request")
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	e := newError(http.StatusBadRequest, "VALIDATION_ERROR", message, "Validation failed")
	e.Details = details
	return e
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	return newError(http.StatusUnauthorized, "UNAUTHORIZED", message, "Authentication required")
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	return newError(http.StatusForbidden, "FORBIDDEN", message, "Access denied")
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	return newError(http.StatusNotFound, "NOT_FOUND", message, "Resource not found")
}

// MethodNotAllowed creates a 405 error.
func MethodNotAllowed(message string) *Error {
	return newError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", message, "Method not allowed")
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return newError(http.StatusConflict, "CONFLICT", message, "Conflict")
}

// PayloadTooLarge creates a 413 error for oversized uploads.
func PayloadTooLarge(message string) *Error {
	return newError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", message, "Request body too large")
}

// Unclassifiable creates a 422 error telling the client to fall back to manual product selection.
func Unclassifiable(message string) *Error {
	return newError(http.StatusUnprocessableEntity, "UNCLASSIFIABLE", message, "The drink could not be recognized, pick it manually")
}

// TooManyRequests creates a 429 error.
func TooManyRequests(message string) *Error {
	return newError(http.StatusTooManyRequests, "RATE_LIMITED", message, "Too many requests")
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	return newError(http.StatusInternalServerError, "INTERNAL_ERROR", message, "An unexpected error occurred")
}

// BadGateway creates a 502 error for upstream failures (vision API, object storage).
func BadGateway(message string) *Error {
	return newError(http.StatusBadGateway, "UPSTREAM_ERROR", message, "Upstream service failed")
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	return newError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, "Service temporarily unavailable")
}
