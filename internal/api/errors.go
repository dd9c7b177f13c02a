// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/parser"
	"github.com/chainring/backend/internal/session"
	"github.com/chainring/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewParseError creates a 422 error for input that could not be read.
func NewParseError(pe *models.ParseError) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "PARSE_ERROR",
		Message: pe.Reason,
		Details: pe.Content,
		Line:    pe.Line,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// fromDomainError maps errors returned by the session, model and parser
// layers onto API errors.
func fromDomainError(err error, resource, id string) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var pe *models.ParseError
	switch {
	case errors.As(err, &pe):
		return NewParseError(pe)
	case errors.Is(err, session.ErrSessionNotFound):
		return NewNotFoundError("drawing", id)
	case errors.Is(err, session.ErrSessionNotReady):
		return NewConflictError(err.Error())
	case errors.Is(err, models.ErrRoomNotFound):
		return NewNotFoundError("room", id)
	case errors.Is(err, models.ErrEntityNotFound):
		return NewNotFoundError("entity", id)
	case errors.Is(err, storage.ErrNotFound):
		return NewNotFoundError("file", id)
	case errors.Is(err, models.ErrNotPolyline), errors.Is(err, parser.ErrUnsupportedFormat):
		return NewBadRequestError(err.Error(), nil)
	}
	return NewInternalError(fmt.Sprintf("%s operation failed", resource), err)
}

// ErrorHandler renders errors as APIError JSON.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
		// Details are only exposed while debugging.
		if slog.Default().Enabled(c.Request().Context(), slog.LevelDebug) {
			apiErr.Details = err.Error()
		}
	}

	if apiErr.Status >= http.StatusInternalServerError {
		slog.Default().Error("request failed",
			"component", "api",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err)
	}

	if err := c.JSON(apiErr.Status, apiErr); err != nil {
		slog.Default().Warn("writing error response", "component", "api", "error", err)
	}
}
