package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced animal does not exist.
	ErrNotFound = errors.New("animal not found")
	// ErrRevisionConflict is returned when a conditional write lost against a concurrent one.
	ErrRevisionConflict = errors.New("animal was modified concurrently")
	// ErrDuplicateNumber is returned when the store refuses a second animal
	// with the same type and number.
	ErrDuplicateNumber = errors.New("animal number already used in category")
	// ErrShareNotAssigned indicates a slot that has no buyer.
	ErrShareNotAssigned = errors.New("share slot is not assigned")
)

// ValidationCode enumerates the input problems that block a write.
type ValidationCode string

const (
	CodeAnimalNumberRequired   ValidationCode = "animal_number_required"
	CodeAnimalNumberNotNumeric ValidationCode = "animal_number_not_numeric"
	CodeAnimalNumberTaken      ValidationCode = "animal_number_taken"
	CodeInvalidType            ValidationCode = "invalid_type"
	CodeInvalidDeliveryType    ValidationCode = "invalid_delivery_type"
	CodeTooManyShares          ValidationCode = "too_many_shares"
	CodeInvalidShareCount      ValidationCode = "invalid_share_count"
	CodeSharesBelowSold        ValidationCode = "shares_below_sold"
	CodeTotalPriceRequired     ValidationCode = "total_price_required"
	CodeNegativeAmount         ValidationCode = "negative_amount"
	CodeInvalidCustomerName    ValidationCode = "invalid_customer_name"
	CodeInvalidPhone           ValidationCode = "invalid_phone"
	CodeOverpayment            ValidationCode = "overpayment"
	CodeInvalidShareSlot       ValidationCode = "invalid_share_slot"
	CodeInvalidPaymentOption   ValidationCode = "invalid_payment_option"
)

// ValidationError reports malformed or out-of-range user input. It is always
// raised before any write is attempted.
type ValidationError struct {
	Field   string
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field string, code ValidationCode, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// IsValidation reports whether err carries a ValidationError with the given code.
// An empty code matches any validation error.
func IsValidation(err error, code ValidationCode) bool {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	return code == "" || verr.Code == code
}

// StoreError wraps failures of the remote animal store.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
