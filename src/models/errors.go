package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrDuplicate                = errors.New("duplicate key")
	ErrInvoiceSourceMissing     = errors.New("invoice needs a course or an offer")
	ErrDiscountCustomerMismatch = errors.New("discount code belongs to another customer")
	ErrDiscountCodeNotUsable    = errors.New("discount code is not usable")
	ErrInvalidStatusTransition  = errors.New("invalid invoice status transition")
	ErrInvoiceCancelled         = errors.New("invoice is cancelled")
	ErrInvoiceNotCancelled      = errors.New("invoice is not cancelled")
	ErrCourseFull               = errors.New("course has no in-person spots left")
	ErrInvalidCustomer          = errors.New("customer needs first and last name")
	ErrInvalidCourseDates       = errors.New("course end date before start date")
	ErrNegativeAmount           = errors.New("amount must not be negative")
	ErrDueBeforeIssue           = errors.New("due date before issue date")
	ErrInvalidDiscountValue     = errors.New("percentage discount above 100")
)

// ValidationError rejects a save before anything is persisted
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps a sentinel with context
func NewValidationError(err error, details string) *ValidationError {
	return &ValidationError{Err: err, Details: details}
}
