package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// statusFor maps the application error taxonomy onto HTTP status codes.
func statusFor(t ErrorType) int {
	switch t {
	case ErrTypeFormat, ErrTypeMissingData, ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeSchemaMismatch:
		return http.StatusConflict
	case ErrTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ToAPIError converts any error to an APIError. Non-AppError values are
// surfaced as opaque internal errors so callers never see raw details.
func ToAPIError(err error) *APIError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		api := &APIError{
			StatusCode: statusFor(appErr.Type),
			ErrorCode:  string(appErr.Type),
			Message:    appErr.Message,
		}
		if len(appErr.Context) > 0 {
			api.Details = appErr.Context
		}
		return api
	}
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  "INTERNAL_SERVER_ERROR",
		Message:    "internal server error",
	}
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error) {
	api := ToAPIError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(api.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(api))
}
