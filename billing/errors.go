/*
errors.go - Error taxonomy for the billing workflow

PURPOSE:
  All failure kinds in one place. The allocation engine itself never
  fails; every error here originates in workflow validation or in the
  storage layer, and each kind maps to a distinct user-facing message.

ERROR CATEGORIES:
  1. Validation errors - rejected before any storage access
  2. Business-rule errors - minimum payment, duplicate months
  3. Not-found errors - missing customer / batch / plan / user
  4. Storage errors - surfaced wrapped, never as raw driver errors

USAGE:
  if errors.Is(err, billing.ErrDuplicatePayment) { ... }

  var dup *billing.DuplicatePaymentError
  if errors.As(err, &dup) { // which months collided
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCustomerNotFound is returned when the referenced customer does
	// not exist or has been soft-deleted.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInsufficientAmount is returned when a payment falls below the
	// computed minimum threshold. Not retried; the caller must correct
	// the amount or mark the period as paused instead.
	ErrInsufficientAmount = errors.New("payment below minimum required amount")

	// ErrDuplicatePayment is returned when one or more requested months
	// already have a batch for that year. A month is billed at most once
	// per year.
	ErrDuplicatePayment = errors.New("month already billed for this year")

	// ErrBatchNotFound is returned when a batch id does not exist.
	ErrBatchNotFound = errors.New("payment batch not found")

	// ErrPlanNotFound is returned when a plan id does not exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrUserNotFound is returned when a user id does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrCustomerExists is returned on a duplicate customer code.
	ErrCustomerExists = errors.New("customer ID already exists")

	// ErrUserExists is returned on a duplicate email or username.
	ErrUserExists = errors.New("email or username already exists")

	// ErrValidation marks malformed input, rejected before any storage
	// access. Wrapped by ValidationError.
	ErrValidation = errors.New("invalid request")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field of a request was malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientAmountError details a minimum-threshold rejection.
type InsufficientAmountError struct {
	MonthCount int
	Required   decimal.Decimal // rate x months
	Minimum    decimal.Decimal // computed acceptance threshold
	Provided   decimal.Decimal
}

func (e *InsufficientAmountError) Error() string {
	return fmt.Sprintf("invalid payment amount: minimum required amount for %d month(s) is %s",
		e.MonthCount, e.Minimum)
}

func (e *InsufficientAmountError) Unwrap() error { return ErrInsufficientAmount }

// DuplicatePaymentError lists the months that are already billed.
type DuplicatePaymentError struct {
	Year   int
	Months []int
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("months %v are already billed for %d", e.Months, e.Year)
}

func (e *DuplicatePaymentError) Unwrap() error { return ErrDuplicatePayment }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a business-rule rejection (HTTP 400 territory).
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientAmount) ||
		errors.Is(err, ErrDuplicatePayment) ||
		errors.Is(err, ErrCustomerExists) ||
		errors.Is(err, ErrUserExists)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrBatchNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
