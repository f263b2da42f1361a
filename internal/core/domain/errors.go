package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors so callers can branch on the class
// (validation, conflict, not found, format) without matching every code.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindFormat
	KindUnauthorized
)

// String returns the class name.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindFormat:
		return "format"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string    // Error code (e.g., "FS-USER-4090")
	Kind    ErrorKind // Error class
	Message string    // Human-readable message
	Details string    // Optional additional details
	Cause   error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code, class and message.
func NewDomainError(code string, kind ErrorKind, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// KindOf returns the class of err, KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsValidation reports whether err is a caller-correctable validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConflict reports whether err is a duplicate-key conflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsNotFound reports whether err signals an absent target.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsFormat reports whether err is a payload format error.
func IsFormat(err error) bool { return KindOf(err) == KindFormat }

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

// ============================================================================
// User Errors (USER)
// ============================================================================

var (
	ErrUserValidation = NewDomainError("FS-USER-4001", KindValidation, "user validation failed")
	ErrUserNotFound   = NewDomainError("FS-USER-4040", KindNotFound, "user not found")
	ErrUserConflict   = NewDomainError("FS-USER-4090", KindConflict, "user code already exists")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	ErrInvalidCredentials = NewDomainError("FS-AUTH-4010", KindUnauthorized, "invalid credentials")
	ErrTooManyAttempts    = NewDomainError("FS-AUTH-4290", KindUnauthorized, "too many login attempts")
)

// ============================================================================
// Order Errors (ORD)
// ============================================================================

var (
	ErrOrderValidation = NewDomainError("FS-ORD-4001", KindValidation, "order validation failed")
	ErrOrderNotFound   = NewDomainError("FS-ORD-4040", KindNotFound, "order not found")
	ErrTaskNotFound    = NewDomainError("FS-ORD-4041", KindNotFound, "task not found")
)

// ============================================================================
// Sync and Backup Errors (SYNC)
// ============================================================================

var (
	ErrSnapshotFormat = NewDomainError("FS-SYNC-4002", KindFormat, "invalid snapshot payload")
	ErrBackupFormat   = NewDomainError("FS-SYNC-4003", KindFormat, "invalid backup payload")
)

// ============================================================================
// System and Argument Errors (SYS, ARG)
// ============================================================================

var (
	ErrStorage         = NewDomainError("FS-SYS-5001", KindInternal, "storage error")
	ErrTxnTooLarge     = NewDomainError("FS-SYS-5002", KindInternal, "write exceeds the store transaction limit; raise storage.memtable_size")
	ErrInvalidArgument = NewDomainError("FS-ARG-4001", KindValidation, "invalid argument")
)
