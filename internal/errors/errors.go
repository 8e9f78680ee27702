package errors

import (
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrInvalidCredentials ErrorCode = "40101"
	ErrTokenExpired       ErrorCode = "40102"

	// Authorization errors (403xx)
	ErrForbidden ErrorCode = "40301"

	// Resource errors (404xx)
	ErrNotFound ErrorCode = "40401"

	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"
	ErrInvalidState     ErrorCode = "40003"
	ErrConflict         ErrorCode = "40004"

	// Server errors (500xx)
	ErrInternalServer ErrorCode = "50001"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse is the failure envelope returned to clients. Every response
// carries a success flag and either data or a message.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Code      ErrorCode `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewErrorResponse builds the failure envelope for an APIError
func NewErrorResponse(err *APIError, requestID string) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		Message:   err.Message,
		Code:      err.Code,
		RequestID: requestID,
	}
}

// Common errors
var (
	ErrInvalidCredentialsError = &APIError{
		Code:       ErrInvalidCredentials,
		Message:    "Authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Server error",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// NewNotFoundError creates a not-found error for a named resource
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:       ErrNotFound,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
	}
}

// NewForbiddenError creates a forbidden error with a specific message
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:       ErrForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidStateError creates an error for operations on a resource in the
// wrong lifecycle state
func NewInvalidStateError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidState,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewConflictError creates a duplicate-resource error. Surfaced with a 400
// status to match the public API contract.
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:       ErrConflict,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}
