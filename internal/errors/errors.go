// Package errors provides structured error types for the Burrow system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure kind.
type ErrorCategory string

const (
	// ErrCategoryConflict covers user-correctable conflicts, surfaced to the
	// caller as a bad request.
	ErrCategoryConflict ErrorCategory = "CONFLICT"

	// ErrCategoryInvalidState covers caller misuse of the table lifecycle.
	ErrCategoryInvalidState ErrorCategory = "INVALID_STATE"

	// ErrCategoryNotFound covers internal consistency failures where a row
	// expected to exist is missing. Not user-facing.
	ErrCategoryNotFound ErrorCategory = "NOT_FOUND"

	// ErrCategoryArithmetic covers count and number overflow/underflow.
	// Not expected to occur absent a substrate bug.
	ErrCategoryArithmetic ErrorCategory = "ARITHMETIC"

	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category. Conflict codes are stable machine-readable
// labels carried to the caller.
const (
	// Conflict codes
	CodeTableConflict = "TableConflict"
	CodeInvalidId     = "InvalidId"
	CodeTooManyTables = "TooManyTables"
	CodeWriteConflict = "WriteConflict"
	CodeSchemaInUse   = "SchemaInUse"

	// Invalid state codes
	CodeTableDeleting = "TableDeleting"
	CodeSchemaState   = "SchemaState"

	// Not found codes
	CodeTableNotFound    = "TableNotFound"
	CodeDocumentNotFound = "DocumentNotFound"

	// Arithmetic codes
	CodeCountOverflow  = "CountOverflow"
	CodeCountUnderflow = "CountUnderflow"
	CodeNumberOverflow = "NumberOverflow"

	// Storage codes
	CodePersistFailed = "PersistFailed"
	CodeArchiveFailed = "ArchiveFailed"

	// Internal codes
	CodeUnexpected = "Unexpected"
)

// BurrowError is the structured error type used throughout the system.
type BurrowError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *BurrowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BurrowError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *BurrowError) Is(target error) bool {
	var t *BurrowError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new BurrowError.
func New(category ErrorCategory, code, message string) *BurrowError {
	return &BurrowError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new BurrowError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *BurrowError {
	return &BurrowError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *BurrowError) WithDetails(details map[string]interface{}) *BurrowError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Retry happens at transaction granularity, outside the catalog.
func IsRetryable(err error) bool {
	var be *BurrowError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// IsUserFacing reports whether the error should surface to the caller as a
// bad request rather than an internal failure.
func IsUserFacing(err error) bool {
	return GetCategory(err) == ErrCategoryConflict
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a BurrowError.
func GetCategory(err error) ErrorCategory {
	var be *BurrowError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a BurrowError.
func GetCode(err error) string {
	var be *BurrowError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only commit-time
// write conflicts are: the caller retries the whole transaction.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryConflict && code == CodeWriteConflict
}

// Convenience constructors for common errors.

// NewConflictError builds a user-correctable conflict with a stable label.
func NewConflictError(code, message string) *BurrowError {
	return New(ErrCategoryConflict, code, message)
}

func NewInvalidStateError(code, message string) *BurrowError {
	return New(ErrCategoryInvalidState, code, message)
}

func NewNotFoundError(code, message string) *BurrowError {
	return New(ErrCategoryNotFound, code, message)
}

func NewArithmeticError(code, message string) *BurrowError {
	return New(ErrCategoryArithmetic, code, message)
}

func NewStorageError(code, message string, cause error) *BurrowError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *BurrowError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
