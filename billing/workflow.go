/*
workflow.go - Bill creation workflow

PURPOSE:
  Orchestrates one billing action end to end: resolve defaults, validate
  cheaply, then inside a single storage transaction look up the customer,
  enforce the minimum-payment threshold, reject overlapping months, read
  the carried balance, run the allocation engine, and persist the batch
  atomically.

FAILURE SEMANTICS:
  Validation errors fire before any storage access. Business-rule
  rejections (InsufficientAmount, DuplicatePayment) and CustomerNotFound
  each surface as distinct typed errors; none are retried - a retry
  would re-derive the same problem. A storage failure rolls back the
  whole transaction: either the full batch exists or none of it.

YEAR RESOLUTION:
  When the request omits the year: a start month earlier than the
  current calendar month rolls into NEXT year. This covers the year-end
  case of a past-due month logged early in the new year. The clock is
  injected, never read from the wall inside the logic.

MINIMUM THRESHOLD:
  A percentage of the required total guards against drastic
  underpayment (typo / fraud), with an absolute per-month floor for the
  standard rate tier. The exact constants differ between historical
  revisions of this rule, so they live in Thresholds as configuration.
  Off (paused) batches always pass amount validation.

SEE ALSO:
  - allocate.go: The pure engine invoked at step 7
  - store.go: The transaction and atomicity contracts relied on here
*/
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMonthlyRate is the standard subscription tier.
var DefaultMonthlyRate = decimal.NewFromInt(310)

// DefaultPaidVia is assumed when the request omits the payment channel.
const DefaultPaidVia = "Cash"

// =============================================================================
// THRESHOLDS - Minimum acceptable payment (configuration, not law)
// =============================================================================

// Thresholds computes the minimum acceptable payment for a batch.
type Thresholds struct {
	// MinPercent of the required total (rate x months), floored.
	MinPercent decimal.Decimal

	// FloorPerMonth applies only to the StandardRate tier: the minimum
	// is at least FloorPerMonth x months there.
	StandardRate  decimal.Decimal
	FloorPerMonth decimal.Decimal
}

// DefaultThresholds matches the operator's current rule: 30% of the
// required total, and at least 100 per month on the standard tier.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinPercent:    decimal.NewFromFloat(0.3),
		StandardRate:  DefaultMonthlyRate,
		FloorPerMonth: decimal.NewFromInt(100),
	}
}

// MinimumFor returns the minimum acceptable payment for monthCount
// months at monthlyRate.
func (t Thresholds) MinimumFor(monthlyRate decimal.Decimal, monthCount int) decimal.Decimal {
	n := decimal.NewFromInt(int64(monthCount))
	percent := monthlyRate.Mul(n).Mul(t.MinPercent).Floor()

	if monthlyRate.Equal(t.StandardRate) {
		return decimal.Max(t.FloorPerMonth.Mul(n), percent)
	}
	return percent
}

// =============================================================================
// SERVICE - Workflow entry points
// =============================================================================

// Service runs billing workflows against a transactional store.
type Service struct {
	Store      TxStore
	Clock      Clock
	Thresholds Thresholds
}

// NewService creates a Service with the system clock and default
// thresholds.
func NewService(store TxStore) *Service {
	return &Service{
		Store:      store,
		Clock:      SystemClock,
		Thresholds: DefaultThresholds(),
	}
}

// CreateBillInput is one billing request. Zero values mean "use the
// default": Year from the clock, EndMonth = StartMonth, MonthlyRate =
// DefaultMonthlyRate, PaidVia = DefaultPaidVia, PaymentDate = now.
type CreateBillInput struct {
	CustomerID  string
	Year        int
	MonthlyRate decimal.Decimal
	StartMonth  int
	EndMonth    int
	Amount      decimal.Decimal
	PaidVia     string
	PaymentDate time.Time
	WasOff      bool
	Note        string
}

// CreateBill validates the request, allocates the payment across the
// covered months, and persists the resulting batch atomically.
func (s *Service) CreateBill(ctx context.Context, in CreateBillInput) (*PaymentBatch, error) {
	now := s.Clock()

	// Resolve defaults.
	if in.EndMonth == 0 {
		in.EndMonth = in.StartMonth
	}
	if in.MonthlyRate.IsZero() {
		in.MonthlyRate = DefaultMonthlyRate
	}
	if in.PaidVia == "" {
		in.PaidVia = DefaultPaidVia
	}
	if in.PaymentDate.IsZero() {
		in.PaymentDate = now
	}
	if in.Year == 0 {
		in.Year = resolveYear(in.StartMonth, now)
	}

	// Cheapest failure path: no storage touched.
	if err := validateInput(in); err != nil {
		return nil, err
	}

	monthCount := in.EndMonth - in.StartMonth + 1

	var batch *PaymentBatch
	err := s.Store.WithTx(ctx, func(store Store) error {
		customer, err := store.FindCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return ErrCustomerNotFound
		}

		// Anti-typo / anti-fraud guard. Paused periods carry amount 0 and
		// always pass.
		if !in.WasOff {
			minimum := s.Thresholds.MinimumFor(in.MonthlyRate, monthCount)
			if in.Amount.LessThan(minimum) {
				return &InsufficientAmountError{
					MonthCount: monthCount,
					Required:   in.MonthlyRate.Mul(decimal.NewFromInt(int64(monthCount))),
					Minimum:    minimum,
					Provided:   in.Amount,
				}
			}
		}

		overlap, err := store.OverlappingMonths(ctx, in.CustomerID, in.Year, in.StartMonth, in.EndMonth)
		if err != nil {
			return err
		}
		if len(overlap) > 0 {
			return &DuplicatePaymentError{Year: in.Year, Months: overlap}
		}

		// Carried balance: the debt/advance of the chronologically last
		// entry across all prior batches, regardless of year. Computed
		// fresh on every invocation, never cached.
		last, err := store.MostRecentEntry(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		alloc := AllocationInput{
			StartMonth:     in.StartMonth,
			EndMonth:       in.EndMonth,
			MonthlyRate:    in.MonthlyRate,
			AmountPaid:     in.Amount,
			PaidVia:        in.PaidVia,
			PaymentDate:    in.PaymentDate,
			Note:           in.Note,
			OpeningDebt:    decimal.Zero,
			OpeningAdvance: decimal.Zero,
		}
		if last != nil {
			alloc.OpeningDebt = last.Debt
			alloc.OpeningAdvance = last.Advance
		}

		var entries []MonthEntry
		if in.WasOff {
			entries = AllocateOff(alloc)
		} else {
			entries = Allocate(alloc)
		}

		batch = s.buildBatch(in.CustomerID, in.Year, entries, now)
		return store.InsertBatch(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}

// DeleteBatch removes a batch and all its month entries together. The
// entries of a batch share one carried-balance lineage; deleting a
// subset would corrupt the forward-carry chain for later batches.
func (s *Service) DeleteBatch(ctx context.Context, id string) error {
	return s.Store.DeleteBatch(ctx, id)
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Service) buildBatch(customerID string, year int, entries []MonthEntry, now time.Time) *PaymentBatch {
	batch := &PaymentBatch{
		ID:           uuid.NewString(),
		CustomerID:   customerID,
		Year:         year,
		TotalDebt:    decimal.Zero,
		TotalAdvance: decimal.Zero,
		UpdatedAt:    now,
		Months:       make([]MonthEntry, len(entries)),
	}

	for i, e := range entries {
		e.ID = uuid.NewString()
		e.BatchID = batch.ID
		e.CreatedAt = now
		batch.Months[i] = e
		batch.TotalDebt = batch.TotalDebt.Add(e.Debt)
		batch.TotalAdvance = batch.TotalAdvance.Add(e.Advance)
	}
	return batch
}

// resolveYear defaults the billing year: a start month that already
// passed this calendar year belongs to the next one.
func resolveYear(startMonth int, now time.Time) int {
	if startMonth < int(now.Month()) {
		return now.Year() + 1
	}
	return now.Year()
}

func validateInput(in CreateBillInput) error {
	switch {
	case in.CustomerID == "":
		return &ValidationError{Field: "customerId", Message: "required"}
	case in.StartMonth < 1 || in.StartMonth > 12:
		return &ValidationError{Field: "startMonth", Message: "must be between 1 and 12"}
	case in.EndMonth < 1 || in.EndMonth > 12:
		return &ValidationError{Field: "endMonth", Message: "must be between 1 and 12"}
	case in.EndMonth < in.StartMonth:
		return &ValidationError{Field: "endMonth", Message: "must not precede startMonth"}
	case in.Amount.IsNegative():
		return &ValidationError{Field: "amount", Message: "must not be negative"}
	case !in.MonthlyRate.IsPositive():
		return &ValidationError{Field: "monthlyAmount", Message: "must be positive"}
	}
	return nil
}
