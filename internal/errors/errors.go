package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeFormat         ErrorType = "FORMAT"
	ErrTypeSchemaMismatch ErrorType = "SCHEMA_MISMATCH"
	ErrTypeNotFound       ErrorType = "NOT_FOUND"
	ErrTypeMissingData    ErrorType = "MISSING_DATA"
	ErrTypeStorage        ErrorType = "STORAGE"
	ErrTypeValidation     ErrorType = "VALIDATION"
	ErrTypeConfig         ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of err, or "" when err carries no AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// Helper functions for common error types

// NewFormatError creates an unparseable-input error naming the offending file
func NewFormatError(filename string, cause error) *AppError {
	return NewAppError(ErrTypeFormat, fmt.Sprintf("cannot parse file %q", filename), cause).
		WithContext("filename", filename)
}

// NewSchemaMismatchError creates a merge rejection carrying the exact
// column-set diff between the incoming and canonical schemas.
func NewSchemaMismatchError(onlyIncoming, onlyCanonical []string) *AppError {
	var parts []string
	if len(onlyIncoming) > 0 {
		parts = append(parts, fmt.Sprintf("only in upload: %s", strings.Join(onlyIncoming, ", ")))
	}
	if len(onlyCanonical) > 0 {
		parts = append(parts, fmt.Sprintf("only in dataset: %s", strings.Join(onlyCanonical, ", ")))
	}
	return NewAppError(ErrTypeSchemaMismatch, "column headers do not match ("+strings.Join(parts, "; ")+")", nil).
		WithContext("only_in_upload", onlyIncoming).
		WithContext("only_in_dataset", onlyCanonical)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewMissingDataError creates an error for an operation referencing a column
// that does not exist or is unfit for the requested computation.
func NewMissingDataError(message string) *AppError {
	return NewAppError(ErrTypeMissingData, message, nil)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
