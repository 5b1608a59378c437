/*
Package billing provides the core subscription-billing engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  recurring monthly subscriptions: splitting a lump payment across a
  range of months, classifying each month's status, and carrying debt
  or advance forward into subsequent periods.

KEY CONCEPTS IN THIS FILE (types.go):
  - MonthEntry: A single month's slice of a payment, with status and
    the debt/advance carried OUT of that month
  - PaymentBatch: The atomic persistence unit for one billing action
    (one lump payment covering 1..N consecutive months)
  - Customer, Plan, User: Supporting records
  - Status: Explicit classification type (no free-form strings)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for money - never float64
  2. Exclusivity: A month carries debt OR advance, never both
  3. Immutability: A persisted batch is never edited; it is deleted
     whole or left alone (partial deletion corrupts the carry chain)

SEE ALSO:
  - allocate.go: The allocation algorithm producing MonthEntry values
  - workflow.go: Validation and orchestration around Allocate
  - store.go: Persistence contracts
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Month-level payment classification
// =============================================================================

// Status classifies how a single month ended up after allocation.
// It is derived by the engine, never set directly by a caller.
type Status string

const (
	StatusPaid          Status = "Paid"           // effective == monthly rate
	StatusPartiallyPaid Status = "Partially Paid" // 0 < effective < monthly rate
	StatusAdvancePaid   Status = "Advance Paid"   // effective > monthly rate
	StatusUnpaid        Status = "Unpaid"         // effective == 0
	StatusOff           Status = "Off"            // service paused, balance held flat
)

// =============================================================================
// MONTH ENTRY - Atomic unit of billing history
// =============================================================================

// MonthEntry records what happened to a single month inside a batch.
//
// INVARIANT: at most one of Debt/Advance is non-zero. A month cannot
// simultaneously owe and overpay.
type MonthEntry struct {
	ID          string
	BatchID     string
	Month       int // 1-12
	Amount      decimal.Decimal
	PaidVia     string
	PaymentDate time.Time
	Status      Status
	Debt        decimal.Decimal // shortfall carried OUT of this month
	Advance     decimal.Decimal // surplus carried OUT of this month
	Note        string
	CreatedAt   time.Time
}

// =============================================================================
// PAYMENT BATCH - Unit of persistence for one billing action
// =============================================================================

// PaymentBatch is the header for one billing transaction. Months are
// strictly increasing with no gaps or duplicates within the batch.
//
// TotalDebt/TotalAdvance are the sums of the entries' Debt/Advance.
// Created atomically; immutable thereafter except whole-batch deletion.
type PaymentBatch struct {
	ID           string
	CustomerID   string
	Year         int
	TotalDebt    decimal.Decimal
	TotalAdvance decimal.Decimal
	UpdatedAt    time.Time
	Months       []MonthEntry
}

// =============================================================================
// SUPPORTING RECORDS
// =============================================================================

// Customer is a subscriber. Code is the operator-assigned customer number
// (unique), distinct from the database ID. Deletion is soft: DeletedAt is
// set and the customer disappears from every query.
type Customer struct {
	ID         string
	Name       string
	Address    string
	Phone      string
	STDID      string // set-top-box / device identifier, optional
	Code       string
	RegisterAt time.Time
	DeletedAt  *time.Time
}

// Plan maps a nominal monthly amount to the operator's profit share.
// Used by analytics to derive profit from collected amounts.
type Plan struct {
	ID     string
	Amount decimal.Decimal
	Profit decimal.Decimal
}

// User is an operator account. Record-keeping only; there is no
// authentication layer in this service.
type User struct {
	ID       string
	Name     string
	Email    string
	Username string
}

// =============================================================================
// BILL SUMMARY - Derived per-customer aggregate
// =============================================================================

// BillSummary aggregates a customer's batches for display: everything
// ever paid, plus the batch-level debt/advance totals.
type BillSummary struct {
	TotalPaid    decimal.Decimal
	TotalDebt    decimal.Decimal
	TotalAdvance decimal.Decimal
}

// Summarize folds a customer's batches into a BillSummary.
func Summarize(batches []PaymentBatch) BillSummary {
	s := BillSummary{
		TotalPaid:    decimal.Zero,
		TotalDebt:    decimal.Zero,
		TotalAdvance: decimal.Zero,
	}
	for _, b := range batches {
		s.TotalDebt = s.TotalDebt.Add(b.TotalDebt)
		s.TotalAdvance = s.TotalAdvance.Add(b.TotalAdvance)
		for _, e := range b.Months {
			s.TotalPaid = s.TotalPaid.Add(e.Amount)
		}
	}
	return s
}

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies "now" to the workflow. Business logic never reads the
// wall clock directly so year-default resolution is testable.
type Clock func() time.Time

// SystemClock is the production clock.
var SystemClock Clock = time.Now
