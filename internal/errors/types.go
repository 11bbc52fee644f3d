// Package errors defines the structured error type shared by the pagesmith
// pipeline and the helpers used to classify failures at the outer surfaces.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeMalformed  ErrorType = "malformed"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypePublish    ErrorType = "publish"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeMalformedDocument = "ERR_MALFORMED_DOCUMENT"
	ErrCodeMalformedRequest  = "ERR_MALFORMED_REQUEST"
	ErrCodeMissingTarget     = "ERR_MISSING_TARGET"
	ErrCodePageNotFound      = "ERR_PAGE_NOT_FOUND"
	ErrCodeInvalidName       = "ERR_INVALID_NAME"
	ErrCodePathTraversal     = "ERR_PATH_TRAVERSAL"
	ErrCodeFetchFailed       = "ERR_FETCH_FAILED"
	ErrCodePublishFailed     = "ERR_PUBLISH_FAILED"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeStorage           = "ERR_STORAGE"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// PagesmithError is a structured error type with context.
type PagesmithError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Page        string
	Recoverable bool
}

// Error implements the error interface.
func (e *PagesmithError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Page != "" {
		parts = append(parts, "page:"+e.Page)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PagesmithError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *PagesmithError) Is(target error) bool {
	var t *PagesmithError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PagesmithError) WithContext(key string, value interface{}) *PagesmithError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPage records the page the error concerns.
func (e *PagesmithError) WithPage(page string) *PagesmithError {
	e.Page = page

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PagesmithError {
	return &PagesmithError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewMalformedError creates an error for input that cannot be parsed.
func NewMalformedError(code, message string, cause error) *PagesmithError {
	return &PagesmithError{
		Type:        ErrorTypeMalformed,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewNotFoundError creates a missing-reference error.
func NewNotFoundError(code, message string) *PagesmithError {
	return &PagesmithError{
		Type:        ErrorTypeNotFound,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *PagesmithError {
	return &PagesmithError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PagesmithError {
	return &PagesmithError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a remote dependency error.
func NewNetworkError(code, message string, cause error) *PagesmithError {
	return &PagesmithError{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewPublishError creates a per-page publish failure.
func NewPublishError(page string, cause error) *PagesmithError {
	return &PagesmithError{
		Type:        ErrorTypePublish,
		Code:        ErrCodePublishFailed,
		Message:     "publish failed",
		Cause:       cause,
		Page:        page,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PagesmithError {
	return &PagesmithError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PagesmithError {
	return &PagesmithError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Helper functions for common errors

// ErrMalformedDocument wraps a parse failure of a document.
func ErrMalformedDocument(page string, cause error) *PagesmithError {
	return NewMalformedError(ErrCodeMalformedDocument, "document cannot be parsed", cause).WithPage(page)
}

// ErrMissingTarget reports a request that names neither a key nor a path.
func ErrMissingTarget(operation string) *PagesmithError {
	return NewValidationError(ErrCodeMissingTarget, operation+" requires a key or a path")
}

// ErrPageNotFound reports an unknown page.
func ErrPageNotFound(page string) *PagesmithError {
	return NewNotFoundError(ErrCodePageNotFound, "page not found").WithPage(page)
}

// ErrInvalidName reports a name that sanitizes to nothing.
func ErrInvalidName(name string) *PagesmithError {
	return NewValidationError(ErrCodeInvalidName, "invalid name: "+name)
}

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *PagesmithError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// hasType reports whether any pagesmith error in err's chain has type t.
func hasType(err error, t ErrorType) bool {
	for err != nil {
		var pe *PagesmithError
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Type == t {
			return true
		}
		err = pe.Cause
	}
	return false
}

// CodeOf returns the code of the outermost pagesmith error in err's chain,
// or ErrCodeInternalError.
func CodeOf(err error) string {
	var pe *PagesmithError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	return ErrCodeInternalError
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *PagesmithError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// IsValidation reports caller contract violations.
func IsValidation(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsMalformed reports unparseable input.
func IsMalformed(err error) bool {
	return hasType(err, ErrorTypeMalformed)
}

// IsNotFound reports missing references.
func IsNotFound(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	return hasType(err, ErrorTypeSecurity)
}
