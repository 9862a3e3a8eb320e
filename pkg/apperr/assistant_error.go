package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Configuration errors (raised once at construction time)
	CodeConfigError    = "CONFIG_ERROR"
	CodeMissingSetting = "MISSING_SETTING"

	// External collaborator errors (caught at call sites)
	CodeTransportError = "TRANSPORT_ERROR"
	CodeParseError     = "PARSE_ERROR"
	CodeTimeout        = "TIMEOUT"

	// Resource errors
	CodeNotFound = "NOT_FOUND"

	// Loop errors
	CodeLoopFatal     = "LOOP_FATAL"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// ConfigError marks a construction-time configuration failure. Callers
// degrade the feature to disabled instead of crashing the process.
func ConfigError(component, reason string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: fmt.Sprintf("%s: %s", component, reason),
		Status:  http.StatusInternalServerError,
		Details: map[string]any{"component": component},
	}
}

// MissingSetting marks an absent required environment setting.
func MissingSetting(key string) *AppError {
	return &AppError{
		Code:    CodeMissingSetting,
		Message: fmt.Sprintf("missing required setting: %s", key),
		Status:  http.StatusInternalServerError,
		Details: map[string]any{"setting": key},
	}
}

// Transport wraps an error from an external provider call.
func Transport(provider string, err error) *AppError {
	return &AppError{
		Code:    CodeTransportError,
		Message: fmt.Sprintf("%s call failed", provider),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"provider": provider},
		Err:     err,
	}
}

// Parse wraps a failure to interpret an external reply.
func Parse(what string, err error) *AppError {
	return &AppError{
		Code:    CodeParseError,
		Message: fmt.Sprintf("failed to parse %s", what),
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// NotFound marks a missing resource.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// LoopFatal marks the consecutive-failure shutdown of a poll loop. This is
// the only error class allowed to terminate the process.
func LoopFatal(loop string, consecutive int, err error) *AppError {
	return &AppError{
		Code:    CodeLoopFatal,
		Message: fmt.Sprintf("%s stopped after %d consecutive errors", loop, consecutive),
		Status:  http.StatusInternalServerError,
		Details: map[string]any{"loop": loop, "consecutive_errors": consecutive},
		Err:     err,
	}
}

// Internal wraps an unexpected internal error.
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Helper functions

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsConfigError reports whether err is a construction-time config failure.
func IsConfigError(err error) bool {
	return IsCode(err, CodeConfigError) || IsCode(err, CodeMissingSetting)
}

// GetAppError extracts an AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
