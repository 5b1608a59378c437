/*
store.go - Persistence contracts for the billing workflow

PURPOSE:
  Defines the narrow storage interface the bill-creation workflow
  depends on. The concrete SQLite store implements much more (customer
  CRUD, plans, analytics queries); the workflow only sees this.

ATOMICITY CONTRACT:
  InsertBatch writes the batch header and ALL its month entries as one
  unit, or none of it. There is no API that inserts the header without
  the entries. DeleteBatch removes a batch and all its entries together;
  partial deletion would corrupt the forward carry chain for later
  batches.

SERIALIZATION CONTRACT:
  The carried-balance read and the new-batch write for the SAME customer
  must not interleave between concurrent workflow calls. WithTx scopes
  the whole overlap-check / balance-read / insert sequence to a single
  storage transaction.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store

SEE ALSO:
  - workflow.go: The only consumer of these interfaces
*/
package billing

import "context"

// Store is the storage surface the bill-creation workflow reads and
// writes through.
type Store interface {
	// FindCustomer returns the customer, or nil if absent or soft-deleted.
	FindCustomer(ctx context.Context, id string) (*Customer, error)

	// OverlappingMonths returns the months in [startMonth, endMonth] that
	// already have a batch for (customerID, year), ascending.
	OverlappingMonths(ctx context.Context, customerID string, year, startMonth, endMonth int) ([]int, error)

	// MostRecentEntry returns the chronologically last month entry for a
	// customer across all batches and years (the carried balance source),
	// or nil if the customer has no entries yet.
	MostRecentEntry(ctx context.Context, customerID string) (*MonthEntry, error)

	// InsertBatch persists a batch header and all its entries atomically.
	InsertBatch(ctx context.Context, batch *PaymentBatch) error

	// DeleteBatch removes a batch and every entry in it, or returns
	// ErrBatchNotFound.
	DeleteBatch(ctx context.Context, id string) error
}

// TxStore wraps Store with transaction support. The workflow runs its
// read-check-insert sequence inside WithTx so concurrent submissions for
// the same customer cannot both read a stale carried balance.
type TxStore interface {
	Store

	// WithTx executes fn within a storage transaction. If fn returns an
	// error the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
