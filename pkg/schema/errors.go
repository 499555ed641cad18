package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeNoProviderFound    = "NO_PROVIDER_FOUND"
	ErrCodeDanglingConnection = "DANGLING_CONNECTION"
	ErrCodeBrokenPath         = "BROKEN_PATH"
	ErrCodeSurfaceUnavailable = "SURFACE_UNAVAILABLE"
	ErrCodeExpression         = "EXPRESSION_ERROR"
	ErrCodeStore              = "STORE_ERROR"
)

// DesignerError is the structured error type for all designer operations.
type DesignerError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	ActivityID string         `json:"activity_id,omitempty"`
	Cause      error          `json:"-"`
}

func (e *DesignerError) Error() string {
	if e.ActivityID != "" {
		return fmt.Sprintf("[%s] activity %s: %s", e.Code, e.ActivityID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DesignerError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DesignerError.
func NewError(code, message string) *DesignerError {
	return &DesignerError{Code: code, Message: message}
}

// NewErrorf creates a new DesignerError with a formatted message.
func NewErrorf(code, format string, args ...any) *DesignerError {
	return &DesignerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithActivity attaches an activity ID to the error.
func (e *DesignerError) WithActivity(activityID string) *DesignerError {
	e.ActivityID = activityID
	return e
}

// WithCause attaches an underlying cause.
func (e *DesignerError) WithCause(err error) *DesignerError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *DesignerError) WithDetails(details map[string]any) *DesignerError {
	e.Details = details
	return e
}

// IsCode reports whether err is (or wraps) a DesignerError with the given code.
func IsCode(err error, code string) bool {
	var de *DesignerError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}
