/*
Package analytics aggregates billing activity into operator dashboards.

PURPOSE:
  Pure computation over month entries, plans, and customer counts. The
  storage layer supplies the raw rows (store/sqlite analytics queries);
  this package decides what counts as revenue, profit, and payment rate.

RULES:
  - Revenue counts only collected money: non-Off entries with a positive
    amount.
  - Profit is looked up per entry amount in the plan table (an entry
    whose amount matches no plan contributes zero profit).
  - Payment rate = paid-or-advance entries / non-Off entries, rounded
    to a whole percent.
  - Debt and advance totals accumulate over every entry in scope,
    including Off months (a paused month still carries its balance).

SEE ALSO:
  - store/sqlite: EntriesForYear, CountNewCustomers, CountDeletedCustomers
  - api: the /api/analytics handler wiring storage into Compute
*/
package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/billing"
)

// View selects the aggregation window.
type View string

const (
	ViewMonthly View = "Monthly"
	ViewYearly  View = "Yearly"
)

// Movement tracks subscriber churn in the window.
type Movement struct {
	New     int
	Deleted int
}

// Report is one dashboard snapshot.
type Report struct {
	TotalCustomers   int
	CustomerMovement Movement
	Revenue          decimal.Decimal
	Profit           decimal.Decimal
	PaymentMethods   map[string]decimal.Decimal
	TotalDebt        decimal.Decimal
	TotalAdvance     decimal.Decimal
	PaymentRate      int // whole percent
}

// Input carries everything Compute needs; all rows are pre-filtered to
// the billing year and active customers by the caller.
type Input struct {
	Entries          []billing.MonthEntry
	Plans            []billing.Plan
	TotalCustomers   int
	NewCustomers     int
	DeletedCustomers int
	Month            int // used when View is Monthly
	View             View
}

// Compute aggregates the input into a Report.
func Compute(in Input) Report {
	report := Report{
		TotalCustomers: in.TotalCustomers,
		CustomerMovement: Movement{
			New:     in.NewCustomers,
			Deleted: in.DeletedCustomers,
		},
		Revenue:        decimal.Zero,
		Profit:         decimal.Zero,
		PaymentMethods: map[string]decimal.Decimal{},
		TotalDebt:      decimal.Zero,
		TotalAdvance:   decimal.Zero,
	}

	profitByAmount := make(map[string]decimal.Decimal, len(in.Plans))
	for _, p := range in.Plans {
		profitByAmount[p.Amount.String()] = p.Profit
	}

	var active, paid int
	for _, e := range in.Entries {
		if in.View == ViewMonthly && e.Month != in.Month {
			continue
		}

		if e.Status != billing.StatusOff && e.Amount.IsPositive() {
			report.Revenue = report.Revenue.Add(e.Amount)
			if profit, ok := profitByAmount[e.Amount.String()]; ok {
				report.Profit = report.Profit.Add(profit)
			}
			method := e.PaidVia
			current, ok := report.PaymentMethods[method]
			if !ok {
				current = decimal.Zero
			}
			report.PaymentMethods[method] = current.Add(e.Amount)
		}

		report.TotalDebt = report.TotalDebt.Add(e.Debt)
		report.TotalAdvance = report.TotalAdvance.Add(e.Advance)

		if e.Status != billing.StatusOff {
			active++
			if e.Status == billing.StatusPaid || e.Status == billing.StatusAdvancePaid {
				paid++
			}
		}
	}

	if active > 0 {
		report.PaymentRate = int(math.Round(float64(paid) / float64(active) * 100))
	}
	return report
}
