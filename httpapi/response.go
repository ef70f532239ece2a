// Package httpapi exposes the orchestrator's operations as HTTP handlers.
// The mapping is deliberately thin: submission is acknowledged with 202
// before any item is processed, and pollers read job snapshots with plain
// GETs.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/curatorhq/batchjobs/pkg/core"
)

// Envelope is the standard API response wrapper.
type Envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// APIError represents an error in the API response.
type APIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JSON writes a JSON response with the standard envelope.
func JSON(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Data: data})
}

// HTTPErrorHandler is the global error handler for echo.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, apiErr := mapError(err)
	if jsonErr := c.JSON(status, Envelope{Error: &apiErr}); jsonErr != nil {
		slog.Error("failed to send error response", "error", jsonErr)
	}
}

func mapError(err error) (int, APIError) {
	// Handle echo's own HTTP errors (404, 405, etc.)
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, APIError{
			Code:    http.StatusText(echoErr.Code),
			Message: msg,
		}
	}

	switch {
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "No job exists with that id; it may have been swept",
		}
	case errors.Is(err, core.ErrJobTerminal):
		return http.StatusConflict, APIError{
			Code:    "already_terminal",
			Message: "The job already finished and cannot be cancelled",
		}
	case errors.Is(err, core.ErrShuttingDown):
		return http.StatusServiceUnavailable, APIError{
			Code:    "shutting_down",
			Message: "The orchestrator is shutting down",
		}
	case errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrKindTooLong),
		errors.Is(err, core.ErrNoItems),
		errors.Is(err, core.ErrTooManyItems),
		errors.Is(err, core.ErrMetadataTooBig):
		return http.StatusBadRequest, APIError{
			Code:    "invalid_input",
			Message: err.Error(),
		}
	default:
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			details := make([]FieldError, 0, len(validationErrs))
			for _, fe := range validationErrs {
				details = append(details, FieldError{
					Field:   fe.Field(),
					Message: "failed on " + fe.Tag(),
				})
			}
			return http.StatusBadRequest, APIError{
				Code:    "validation_error",
				Message: "Validation failed",
				Details: details,
			}
		}

		slog.Error("unhandled error", "error", err)
		return http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "An unexpected error occurred",
		}
	}
}
