package errors

import (
	"errors"
	"fmt"
)

// Base error types
var (
	ErrNotFound             = errors.New("entity not found")
	ErrAmbiguousDisplayName = errors.New("ambiguous display name")
	ErrInvalidColumn        = errors.New("invalid column")
	ErrInvalidCondition     = errors.New("invalid filter condition")
	ErrInvalidSortDirection = errors.New("invalid sort direction")
	ErrFetchFailed          = errors.New("fetch failed")
	ErrInvalidInput         = errors.New("invalid input")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeFetch      ErrorType = "fetch"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeAmbiguous  ErrorType = "ambiguous"
	ErrorTypeAPI        ErrorType = "api"
)

// SDKError is a structured error for SDK operations. Entity names the
// offending identifier or column so callers can act without inspecting
// internal state.
type SDKError struct {
	Type      ErrorType
	Op        string // Operation that failed (e.g., "refresh", "compile_fq")
	Entity    string // Identifier or column name involved, if any
	Err       error  // Underlying error
	Retryable bool
}

func (e *SDKError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s failed for %q: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *SDKError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *SDKError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrNotFound:
		return e.Type == ErrorTypeNotFound
	case ErrAmbiguousDisplayName:
		return e.Type == ErrorTypeAmbiguous
	case ErrFetchFailed:
		return e.Type == ErrorTypeFetch
	}

	return errors.Is(e.Err, target)
}

// NewSDKError creates a new SDKError
func NewSDKError(errorType ErrorType, op, entity string, err error) *SDKError {
	return &SDKError{
		Type:      errorType,
		Op:        op,
		Entity:    entity,
		Err:       err,
		Retryable: errorType == ErrorTypeFetch,
	}
}

// Helper constructors

// NotFound reports that no record matched the given identifier.
func NotFound(op, identifier string) error {
	return NewSDKError(ErrorTypeNotFound, op, identifier, ErrNotFound)
}

// Ambiguous reports that more than one record matched a display name.
func Ambiguous(op, displayName string) error {
	return NewSDKError(ErrorTypeAmbiguous, op, displayName, ErrAmbiguousDisplayName)
}

// InvalidColumn reports an unknown column name in a query request.
func InvalidColumn(op, column string) error {
	return NewSDKError(ErrorTypeValidation, op, column, ErrInvalidColumn)
}

// InvalidCondition reports an unsupported filter condition or value.
func InvalidCondition(op, condition string) error {
	return NewSDKError(ErrorTypeValidation, op, condition, ErrInvalidCondition)
}

// InvalidSortDirection reports a sort direction outside {"1", "-1"}.
func InvalidSortDirection(op, direction string) error {
	return NewSDKError(ErrorTypeValidation, op, direction, ErrInvalidSortDirection)
}

// FetchFailed wraps a translated server error after retries are exhausted.
func FetchFailed(op, serverText string) error {
	return NewSDKError(ErrorTypeFetch, op, "", fmt.Errorf("%w: %s", ErrFetchFailed, serverText))
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	var sdkErr *SDKError
	if errors.As(err, &sdkErr) {
		return sdkErr.Retryable
	}
	return false
}
