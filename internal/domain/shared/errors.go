package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so errors.Is works against the
// sentinel values below regardless of the specific message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// IsNotFound reports whether the error carries the NOT_FOUND code
func IsNotFound(err error) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == "NOT_FOUND"
}

// Common domain errors.
// Cross-tenant lookups intentionally surface ErrNotFound rather than a
// forbidden error so that record existence never leaks across tenants.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrExpiredLot          = NewDomainError("EXPIRED_LOT", "Lot has passed its expiry date")
	ErrInvalidQuantity     = NewDomainError("INVALID_QUANTITY", "Quantity must be non-zero and correctly signed")
	ErrWouldUnderflow      = NewDomainError("WOULD_UNDERFLOW", "Operation would drive on-hand quantity negative")
	ErrIncompleteCount     = NewDomainError("INCOMPLETE_COUNT", "Not all lines have been counted")
)
