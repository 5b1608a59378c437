/*
allocate.go - The monthly payment allocation engine

PURPOSE:
  Splits a lump payment deterministically across a consecutive range of
  months, applying any carried-forward debt or advance, and classifies
  each month. This is a pure function: no storage, no clock, no errors.

ALGORITHM (single forward pass):
  For each month in [start, end]:
    1. The LAST month absorbs all remaining money; earlier months take
       min(rate, remaining). Slack concentrates in the final period so
       no currency is left unallocated.
    2. effective = this month's slice + advance carried in
    3. effective >= rate  -> advance out = effective - rate, debt out = 0
       effective <  rate  -> debt out = rate - effective, advance out = 0
    4. Status from effective vs rate (see Classify)

PRECONDITIONS (caller-enforced, see workflow.go):
  1 <= start <= end <= 12, rate > 0, amount >= 0, opening debt/advance
  >= 0 and not both non-zero. Within that domain the engine is total.

NOTE: Opening advance is spent before the first month is judged short.
Opening debt never alters the slicing: the first allocated month's own
shortfall replaces it, so a debt chain restates itself each month rather
than compounding.

SEE ALSO:
  - workflow.go: Validates input and persists the result
  - types.go: MonthEntry and Status definitions
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationInput carries the parameters of one allocation run.
type AllocationInput struct {
	StartMonth     int
	EndMonth       int
	MonthlyRate    decimal.Decimal
	AmountPaid     decimal.Decimal
	PaidVia        string
	PaymentDate    time.Time
	Note           string
	OpeningDebt    decimal.Decimal
	OpeningAdvance decimal.Decimal
}

func (in AllocationInput) monthCount() int {
	return in.EndMonth - in.StartMonth + 1
}

// Allocate produces one MonthEntry per month in [StartMonth, EndMonth],
// in month order. Sum of entry amounts always equals AmountPaid.
func Allocate(in AllocationInput) []MonthEntry {
	entries := make([]MonthEntry, 0, in.monthCount())

	remaining := in.AmountPaid
	carryDebt := in.OpeningDebt
	carryAdvance := in.OpeningAdvance

	for month := in.StartMonth; month <= in.EndMonth; month++ {
		var monthAmount decimal.Decimal
		if month == in.EndMonth {
			// Last month absorbs the remainder.
			monthAmount = remaining
		} else {
			monthAmount = decimal.Min(in.MonthlyRate, remaining)
		}
		remaining = remaining.Sub(monthAmount)

		// Prior surplus is applied before this month's shortfall is assessed.
		effective := monthAmount.Add(carryAdvance)

		if effective.GreaterThanOrEqual(in.MonthlyRate) {
			carryAdvance = effective.Sub(in.MonthlyRate)
			carryDebt = decimal.Zero
		} else {
			carryDebt = in.MonthlyRate.Sub(effective)
			carryAdvance = decimal.Zero
		}

		entries = append(entries, MonthEntry{
			Month:       month,
			Amount:      monthAmount,
			PaidVia:     in.PaidVia,
			PaymentDate: in.PaymentDate,
			Status:      Classify(effective, in.MonthlyRate),
			Debt:        carryDebt,
			Advance:     carryAdvance,
			Note:        in.Note,
		})
	}

	return entries
}

// AllocateOff emits entries for a paused-service period: amount zero,
// status Off, and the opening debt/advance held flat on every month.
// Pausing never changes the balance.
func AllocateOff(in AllocationInput) []MonthEntry {
	entries := make([]MonthEntry, 0, in.monthCount())

	for month := in.StartMonth; month <= in.EndMonth; month++ {
		entries = append(entries, MonthEntry{
			Month:       month,
			Amount:      decimal.Zero,
			PaidVia:     in.PaidVia,
			PaymentDate: in.PaymentDate,
			Status:      StatusOff,
			Debt:        in.OpeningDebt,
			Advance:     in.OpeningAdvance,
			Note:        in.Note,
		})
	}

	return entries
}

// Classify maps a month's effective payment against the monthly rate.
// Exhaustive over the engine's output domain.
func Classify(effective, monthlyRate decimal.Decimal) Status {
	switch {
	case effective.IsZero():
		return StatusUnpaid
	case effective.LessThan(monthlyRate):
		return StatusPartiallyPaid
	case effective.GreaterThan(monthlyRate):
		return StatusAdvancePaid
	default:
		return StatusPaid
	}
}
