package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error with a stable, machine-readable code.
// Codes have the form KV-<AREA>-<NNNN>, where the last four digits start
// with the HTTP status the error maps to.
type DomainError struct {
	Code    string // e.g. "KV-NOTFOUND-4040"
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a DomainError.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy of e carrying details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of e wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// IsDomainError reports whether err is a DomainError with the given code.
// An empty code matches any DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// GetErrorCode returns the code of a DomainError, or "".
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Key/value errors.
var (
	ErrKeyNotFound   = NewDomainError("KV-NOTFOUND-4040", "key not found")
	ErrKeyEmpty      = NewDomainError("KV-ARG-4001", "key must not be empty")
	ErrKeyTooLong    = NewDomainError("KV-ARG-4003", "key too long")
	ErrValueTooLarge = NewDomainError("KV-ARG-4002", "value too large")
	ErrInvalidInput  = NewDomainError("KV-ARG-4000", "invalid input")
)

// System errors.
var (
	ErrRateLimited     = NewDomainError("KV-SYS-4290", "rate limit exceeded")
	ErrPersistence     = NewDomainError("KV-SYS-5001", "persistence failed")
	ErrInternal        = NewDomainError("KV-SYS-5000", "internal error")
	ErrServiceDisabled = NewDomainError("KV-SYS-5030", "service unavailable")
)
