package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	// Status is the HTTP status returned by a remote service, zero when the
	// request never produced a response.
	Status int
	Cause  error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Status:  appErr.Status,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Status:  appErr.Status,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is, or wraps, an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// Message returns the user-facing message of an AppError, or err.Error() otherwise
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeRequestError    = "REQUEST_ERROR"
	CodeNoAnalysis      = "NO_ANALYSIS"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

// Validation reports a user-correctable input problem, such as a bad file
func Validation(message string) *AppError {
	return New(CodeValidationError, message)
}

// Request reports a failed call to the remote prediction service.
// status is zero for transport failures.
func Request(message string, status int, cause error) *AppError {
	return &AppError{
		Code:    CodeRequestError,
		Message: message,
		Status:  status,
		Cause:   cause,
	}
}

func NoAnalysis(message string) *AppError {
	return New(CodeNoAnalysis, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return HasCode(err, CodeValidationError)
}

// IsRequest reports whether err is a remote request error
func IsRequest(err error) bool {
	return HasCode(err, CodeRequestError)
}
