package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnection indicates a transient protocol connection failure;
	// retried once per folder before the folder is aborted
	ErrConnection = errors.New("connection failed")

	// ErrAuthExpired indicates the refresh token was rejected; the user
	// must go through consent again. Fatal for the task.
	ErrAuthExpired = errors.New("authorization expired")

	// ErrScopeMissing indicates the provider granted fewer scopes than
	// mining requires. Fatal at credential-acquisition time.
	ErrScopeMissing = errors.New("required scope not granted")

	// ErrParse indicates a message could not be parsed; recovered
	// locally, the message contributes no text
	ErrParse = errors.New("message parse failed")

	// ErrDNSLookup indicates an MX lookup failure; treated as an
	// unreachable domain, never propagated
	ErrDNSLookup = errors.New("DNS lookup failed")

	// ErrStorageWrite indicates a durable-storage write failure after
	// retries were exhausted
	ErrStorageWrite = errors.New("storage write failed")

	// ErrTaskNotFound indicates the mining task was not found
	ErrTaskNotFound = errors.New("mining task not found")

	// ErrSourceNotFound indicates the mining source was not found
	ErrSourceNotFound = errors.New("mining source not found")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")
)

// Error codes for API responses
const (
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeConnection    = "CONNECTION_FAILED"
	CodeAuthExpired   = "AUTH_EXPIRED"
	CodeScopeMissing  = "SCOPE_MISSING"
	CodeParse         = "PARSE_FAILED"
	CodeDNSLookup     = "DNS_LOOKUP_FAILED"
	CodeStorageWrite  = "STORAGE_WRITE_FAILED"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrSourceNotFound)
}

// IsConnection checks if the error is a transient connection error
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsAuthExpired checks if the error requires user re-consent
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// IsScopeMissing checks if the error is a scope validation failure
func IsScopeMissing(err error) bool {
	return errors.Is(err, ErrScopeMissing)
}

// IsFatalForTask reports whether an error must terminate the whole
// task instead of degrading to a folder-level failure.
func IsFatalForTask(err error) bool {
	return IsAuthExpired(err) ||
		IsScopeMissing(err) ||
		errors.Is(err, ErrStorageWrite)
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	switch {
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrConnection):
		return CodeConnection
	case errors.Is(err, ErrAuthExpired):
		return CodeAuthExpired
	case errors.Is(err, ErrScopeMissing):
		return CodeScopeMissing
	case errors.Is(err, ErrParse):
		return CodeParse
	case errors.Is(err, ErrDNSLookup):
		return CodeDNSLookup
	case errors.Is(err, ErrStorageWrite):
		return CodeStorageWrite
	default:
		return CodeInternalError
	}
}
