package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors. The Message is what clients
// see in the response envelope; Err is internal context that never leaves
// the process.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

func NewValidationError(message string) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest)
}

func NewNotFound(resource string) error {
	return NewDomainError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewUnauthorized is the single 401 shape. Whether the token was missing,
// malformed, tampered or expired is not distinguishable from the outside.
func NewUnauthorized() error {
	return NewDomainError("UNAUTHORIZED", "Unauthorized", http.StatusUnauthorized)
}

func NewForbidden() error {
	return NewDomainError("FORBIDDEN", "Forbidden: Insufficient permissions", http.StatusForbidden)
}

func NewConflict(message string) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "Internal Server Error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts arbitrary errors to a DomainError, collapsing
// anything unrecognized into a generic 500.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "Internal Server Error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
