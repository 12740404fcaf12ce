package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a showcase error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"    // 400
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"  // 400
	ErrFolderInUse      ErrorCode = "FOLDER_IN_USE"      // 400
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"       // 401
	ErrNotFound         ErrorCode = "NOT_FOUND"          // 404
	ErrMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED" // 405
	ErrSlugConflict     ErrorCode = "SLUG_CONFLICT"      // 409
	ErrFolderExists     ErrorCode = "FOLDER_EXISTS"      // 409
	ErrFolderMismatch   ErrorCode = "FOLDER_MISMATCH"    // 409
	ErrLockedOut        ErrorCode = "LOCKED_OUT"         // 429
	ErrRateLimited      ErrorCode = "RATE_LIMITED"       // 429
	ErrInternal         ErrorCode = "INTERNAL"           // 500
)

// ShowcaseError represents a structured error with code, status, and details.
type ShowcaseError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ShowcaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for malformed requests.
func NewInvalidRequest(msg string) *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewValidationFailed creates a 400 error naming the offending field.
func NewValidationFailed(field, msg string) *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrValidationFailed,
		Status:  400,
		Message: msg,
		Details: map[string]any{"field": field},
	}
}

// NewFolderInUse creates a 400 error when sketches still reference a folder.
func NewFolderInUse(id string, sketchCount int) *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrFolderInUse,
		Status:  400,
		Message: fmt.Sprintf("folder %q is referenced by %d sketch(es)", id, sketchCount),
		Details: map[string]any{"id": id, "sketchCount": sketchCount},
	}
}

// NewUnauthorized creates a 401 error for missing or wrong credentials.
func NewUnauthorized() *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: "authentication required",
	}
}

// NewNotFound creates a 404 error. kind is "sketch" or "folder".
func NewNotFound(kind, key string) *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, key),
		Details: map[string]any{"kind": kind, "key": key},
	}
}

// NewMethodNotAllowed creates a 405 error for a known path with the wrong method.
func NewMethodNotAllowed(method, path string) *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrMethodNotAllowed,
		Status:  405,
		Message: fmt.Sprintf("%s is not allowed on %s", method, path),
	}
}

// NewSlugConflict creates a 409 error when another sketch derives the same slug.
func NewSlugConflict(slug string) *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrSlugConflict,
		Status:  409,
		Message: fmt.Sprintf("a sketch with slug %q already exists", slug),
		Details: map[string]any{"slug": slug},
	}
}

// NewFolderExists creates a 409 error for duplicate folder ids.
func NewFolderExists(id string) *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrFolderExists,
		Status:  409,
		Message: fmt.Sprintf("folder %q already exists", id),
		Details: map[string]any{"id": id},
	}
}

// NewFolderMismatch creates a 409 error when a sketch names an unknown week.
func NewFolderMismatch(week string) *ShowcaseError {
	msg := fmt.Sprintf("week %q does not match any folder", week)
	if week == "" {
		msg = "no folder exists to hold the sketch"
	}
	return &ShowcaseError{
		Code:    ErrFolderMismatch,
		Status:  409,
		Message: msg,
		Details: map[string]any{"week": week},
	}
}

// NewLockedOut creates a 429 error for clients locked out after failed logins.
func NewLockedOut(retryAfterSeconds int) *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrLockedOut,
		Status:  429,
		Message: "too many failed attempts; try again later",
		Details: map[string]any{"retryAfter": retryAfterSeconds},
	}
}

// NewRateLimited creates a 429 error when the request budget is exhausted.
func NewRateLimited() *ShowcaseError {
	return &ShowcaseError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: "rate limit exceeded",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ShowcaseError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ShowcaseError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// As returns the ShowcaseError in err's chain, or wraps err as INTERNAL.
func As(err error) *ShowcaseError {
	var sErr *ShowcaseError
	if stderrors.As(err, &sErr) {
		return sErr
	}
	return NewInternal(err)
}

// Is checks if an error is a ShowcaseError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *ShowcaseError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
