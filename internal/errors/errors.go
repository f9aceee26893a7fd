// Package errors provides structured error types for the Tessera system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryMetadata ErrorCategory = "METADATA"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryPruning  ErrorCategory = "PRUNING"
	ErrCategoryParse    ErrorCategory = "PARSE"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Metadata codes
	CodeMissingComparator  = "MISSING_COMPARATOR"
	CodeComparatorFailed   = "COMPARATOR_FAILED"
	CodeInvalidShardLayout = "INVALID_SHARD_LAYOUT"

	// Catalog codes
	CodeTableNotFound   = "TABLE_NOT_FOUND"
	CodeTableExists     = "TABLE_EXISTS"
	CodeCorruptCatalog  = "CORRUPT_CATALOG"
	CodeSnapshotCorrupt = "SNAPSHOT_CORRUPT"

	// Parse codes
	CodeParseError        = "PARSE_ERROR"
	CodeUnsupportedSyntax = "UNSUPPORTED_SYNTAX"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// TesseraError is the structured error type used throughout the system.
type TesseraError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *TesseraError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *TesseraError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *TesseraError) Is(target error) bool {
	var t *TesseraError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new TesseraError.
func New(category ErrorCategory, code, message string) *TesseraError {
	return &TesseraError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new TesseraError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *TesseraError {
	return &TesseraError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *TesseraError) WithDetails(details map[string]interface{}) *TesseraError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var te *TesseraError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a TesseraError.
func GetCategory(err error) ErrorCategory {
	var te *TesseraError
	if errors.As(err, &te) {
		return te.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a TesseraError.
func GetCode(err error) string {
	var te *TesseraError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only transient
// storage failures qualify; metadata and pruning errors are deterministic.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewMetadataError(code, message string) *TesseraError {
	return New(ErrCategoryMetadata, code, message)
}

func NewCatalogError(code, message string, cause error) *TesseraError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewParseError(code, message string) *TesseraError {
	return New(ErrCategoryParse, code, message)
}

func NewStorageError(code, message string, cause error) *TesseraError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *TesseraError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
