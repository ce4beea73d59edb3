// Package errors provides a structured error system for DBFS with error
// codes, categories, and context.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for DBFS operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig    ErrorCode = "MISSING_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Server and connection errors
	ErrCodeUnknownServer     ErrorCode = "UNKNOWN_SERVER"
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"

	// Query errors
	ErrCodeQueryFailed     ErrorCode = "QUERY_FAILED"
	ErrCodeQueryTimeout    ErrorCode = "QUERY_TIMEOUT"
	ErrCodeResponseInvalid ErrorCode = "RESPONSE_INVALID"

	// Filesystem errors
	ErrCodeMountFailed    ErrorCode = "MOUNT_FAILED"
	ErrCodeUnmountFailed  ErrorCode = "UNMOUNT_FAILED"
	ErrCodePathInvalid    ErrorCode = "PATH_INVALID"
	ErrCodeSeedFailed     ErrorCode = "SEED_FAILED"
	ErrCodeBackingStore   ErrorCode = "BACKING_STORE"
	ErrCodeReadOnlyTarget ErrorCode = "READ_ONLY_TARGET"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConnection    ErrorCategory = "connection"
	CategoryQuery         ErrorCategory = "query"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryInternal      ErrorCategory = "internal"
)

// DBFSError represents a structured error with context and metadata.
type DBFSError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Error implements the error interface.
func (e *DBFSError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *DBFSError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *DBFSError) Is(target error) bool {
	if dbfsErr, ok := target.(*DBFSError); ok {
		return e.Code == dbfsErr.Code
	}
	return false
}

// NewError creates a new DBFS error.
func NewError(code ErrorCode, message string) *DBFSError {
	return &DBFSError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new DBFS error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *DBFSError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new DBFS error wrapping a cause.
func Wrap(code ErrorCode, message string, cause error) *DBFSError {
	err := NewError(code, message)
	err.Cause = cause
	return err
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "MISSING_CONFIG") ||
		strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "UNKNOWN_SERVER") || strings.HasPrefix(codeStr, "CONNECTION_"):
		return CategoryConnection
	case strings.HasPrefix(codeStr, "QUERY_") || strings.HasPrefix(codeStr, "RESPONSE_"):
		return CategoryQuery
	case strings.HasPrefix(codeStr, "MOUNT_") || strings.HasPrefix(codeStr, "UNMOUNT_") ||
		strings.HasPrefix(codeStr, "PATH_") || strings.HasPrefix(codeStr, "SEED_") ||
		strings.HasPrefix(codeStr, "BACKING_") || strings.HasPrefix(codeStr, "READ_ONLY_"):
		return CategoryFilesystem
	default:
		return CategoryInternal
	}
}

// WithContext adds contextual information to an error.
func (e *DBFSError) WithContext(key, value string) *DBFSError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error.
func (e *DBFSError) WithComponent(component string) *DBFSError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *DBFSError) WithOperation(operation string) *DBFSError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *DBFSError) WithCause(cause error) *DBFSError {
	e.Cause = cause
	return e
}

// HasCode reports whether err is a DBFSError carrying the given code
// anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if dbfsErr, ok := err.(*DBFSError); ok && dbfsErr.Code == code {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
