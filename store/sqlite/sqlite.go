/*
Package sqlite provides the SQLite-backed implementation of the billing
storage contracts.

PURPOSE:
  Implements billing.Store / billing.TxStore plus the wider persistence
  surface the HTTP layer needs (customer CRUD, plans, users, analytics
  queries). The same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  customers:      Subscribers (soft-deleted via deleted_at)
  payments:       Batch headers (customer, year, totals)
  month_payments: Per-month ledger entries belonging to a batch
  plans:          Amount -> profit mapping for analytics
  users:          Operator accounts

ATOMICITY:
  InsertBatch writes the header and every entry inside one database
  transaction. DeleteBatch removes the header and lets the FK cascade
  take the entries with it, in one transaction. There is no code path
  that leaves a header without its entries or vice versa.

MONEY:
  Stored as decimal strings (TEXT), parsed with shopspring/decimal.
  Never stored or compared as floating point.

CONCURRENCY:
  sync.RWMutex serializes writers. WithTx holds the write lock for the
  whole read-check-insert sequence, which gives the per-customer
  serialization the workflow requires. With PostgreSQL, database-level
  concurrency control replaces the mutex.

WAL MODE:
  SQLite is opened with WAL and foreign keys on: readers don't block,
  single writer at a time, ON DELETE CASCADE enforced.

SEE ALSO:
  - billing/store.go: Interface definitions and contracts
  - billing/workflow.go: The transactional consumer
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/billing"
)

const (
	timeFormat = time.RFC3339
	dateFormat = "2006-01-02"
)

// Store implements billing.TxStore and the wider persistence surface.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		phone TEXT NOT NULL,
		std_id TEXT,
		code TEXT NOT NULL UNIQUE,
		register_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_customers_deleted
		ON customers(deleted_at);

	-- Batch headers. One row per billing action.
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		total_debt TEXT NOT NULL DEFAULT '0',
		total_advance TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL
	);

	-- Hot path: overlap checks and per-customer listings.
	CREATE INDEX IF NOT EXISTS idx_payments_customer_year
		ON payments(customer_id, year);

	-- Month entries. Live and die with their batch (cascade).
	CREATE TABLE IF NOT EXISTS month_payments (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
		month INTEGER NOT NULL,
		amount TEXT NOT NULL,
		paid_via TEXT,
		debt TEXT NOT NULL DEFAULT '0',
		advance TEXT NOT NULL DEFAULT '0',
		payment_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Unpaid',
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_month_payments_payment
		ON month_payments(payment_id);

	-- No duplicate months inside one batch.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_month_payments_unique
		ON month_payments(payment_id, month);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		profit TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL UNIQUE
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// BILLING STORE (billing.TxStore interface)
// =============================================================================

// WithTx runs fn inside a database transaction. The write lock is held
// for the whole sequence, serializing concurrent bill creations.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore is the transaction-scoped view handed to WithTx callbacks.
// It takes no locks: WithTx already holds the write lock.
type txStore struct {
	q *sql.Tx
}

func (t *txStore) FindCustomer(ctx context.Context, id string) (*billing.Customer, error) {
	return findCustomer(ctx, t.q, id)
}

func (t *txStore) OverlappingMonths(ctx context.Context, customerID string, year, startMonth, endMonth int) ([]int, error) {
	return overlappingMonths(ctx, t.q, customerID, year, startMonth, endMonth)
}

func (t *txStore) MostRecentEntry(ctx context.Context, customerID string) (*billing.MonthEntry, error) {
	return mostRecentEntry(ctx, t.q, customerID)
}

func (t *txStore) InsertBatch(ctx context.Context, batch *billing.PaymentBatch) error {
	return insertBatch(ctx, t.q, batch)
}

func (t *txStore) DeleteBatch(ctx context.Context, id string) error {
	return deleteBatch(ctx, t.q, id)
}

func (s *Store) FindCustomer(ctx context.Context, id string) (*billing.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findCustomer(ctx, s.db, id)
}

func (s *Store) OverlappingMonths(ctx context.Context, customerID string, year, startMonth, endMonth int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return overlappingMonths(ctx, s.db, customerID, year, startMonth, endMonth)
}

func (s *Store) MostRecentEntry(ctx context.Context, customerID string) (*billing.MonthEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mostRecentEntry(ctx, s.db, customerID)
}

// InsertBatch outside WithTx still writes header + entries atomically.
func (s *Store) InsertBatch(ctx context.Context, batch *billing.PaymentBatch) error {
	return s.WithTx(ctx, func(store billing.Store) error {
		return store.InsertBatch(ctx, batch)
	})
}

// DeleteBatch removes the header; the FK cascade removes every entry in
// the same transaction. Never a subset.
func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteBatch(ctx, s.db, id)
}

// =============================================================================
// BILLING QUERIES - Shared between direct and transactional paths
// =============================================================================

func findCustomer(ctx context.Context, q querier, id string) (*billing.Customer, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, address, phone, std_id, code, register_at, deleted_at
		FROM customers
		WHERE id = ? AND deleted_at IS NULL
	`, id)

	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return c, nil
}

func overlappingMonths(ctx context.Context, q querier, customerID string, year, startMonth, endMonth int) ([]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT mp.month
		FROM month_payments mp
		JOIN payments p ON p.id = mp.payment_id
		WHERE p.customer_id = ? AND p.year = ? AND mp.month BETWEEN ? AND ?
		ORDER BY mp.month ASC
	`, customerID, year, startMonth, endMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping months: %w", err)
	}
	defer rows.Close()

	var months []int
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

func mostRecentEntry(ctx context.Context, q querier, customerID string) (*billing.MonthEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT mp.id, mp.payment_id, mp.month, mp.amount, mp.paid_via, mp.debt,
		       mp.advance, mp.payment_date, mp.status, mp.note, mp.created_at
		FROM month_payments mp
		JOIN payments p ON p.id = mp.payment_id
		WHERE p.customer_id = ?
		ORDER BY p.year DESC, mp.created_at DESC, mp.month DESC
		LIMIT 1
	`, customerID)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load most recent entry: %w", err)
	}
	return entry, nil
}

func insertBatch(ctx context.Context, q querier, batch *billing.PaymentBatch) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (id, customer_id, year, total_debt, total_advance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		batch.ID,
		batch.CustomerID,
		batch.Year,
		batch.TotalDebt.String(),
		batch.TotalAdvance.String(),
		batch.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	for _, e := range batch.Months {
		_, err := q.ExecContext(ctx, `
			INSERT INTO month_payments
			(id, payment_id, month, amount, paid_via, debt, advance, payment_date, status, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ID,
			batch.ID,
			e.Month,
			e.Amount.String(),
			nullString(e.PaidVia),
			e.Debt.String(),
			e.Advance.String(),
			e.PaymentDate.UTC().Format(timeFormat),
			string(e.Status),
			nullString(e.Note),
			e.CreatedAt.UTC().Format(timeFormat),
		)
		if err != nil {
			return fmt.Errorf("failed to insert month entry: %w", err)
		}
	}
	return nil
}

func deleteBatch(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrBatchNotFound
	}
	return nil
}

// =============================================================================
// BATCH READS
// =============================================================================

// Transaction is a batch joined with its (active) customer, for the
// transaction listings.
type Transaction struct {
	Batch    billing.PaymentBatch
	Customer billing.Customer
}

// ListBatchesByCustomer returns a customer's batches, newest year first.
// year 0 means all years. Entries are loaded month-ascending.
func (s *Store) ListBatchesByCustomer(ctx context.Context, customerID string, year int) ([]billing.PaymentBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, year, total_debt, total_advance, updated_at
		FROM payments
		WHERE customer_id = ?
	`
	args := []any{customerID}
	if year != 0 {
		query += ` AND year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY year DESC, updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	batches, err := scanBatches(rows)
	if err != nil {
		return nil, err
	}

	for i := range batches {
		entries, err := loadEntries(ctx, s.db, batches[i].ID)
		if err != nil {
			return nil, err
		}
		batches[i].Months = entries
	}
	return batches, nil
}

// ListTransactions returns batches of active customers, newest first.
// limit 0 means no limit.
func (s *Store) ListTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT p.id, p.customer_id, p.year, p.total_debt, p.total_advance, p.updated_at,
		       c.id, c.name, c.address, c.phone, c.std_id, c.code, c.register_at, c.deleted_at
		FROM payments p
		JOIN customers c ON c.id = p.customer_id
		WHERE c.deleted_at IS NULL
		ORDER BY p.year DESC, p.updated_at DESC
	`
	args := []any{}
	if limit > 0 {
		// Recent view drops the year ordering: strictly newest activity.
		query = strings.Replace(query, "ORDER BY p.year DESC, p.updated_at DESC",
			"ORDER BY p.updated_at DESC", 1)
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var (
			b          billing.PaymentBatch
			c          billing.Customer
			debt, adv  string
			updated    string
			stdID      sql.NullString
			registerAt string
			deletedAt  sql.NullString
		)
		err := rows.Scan(&b.ID, &b.CustomerID, &b.Year, &debt, &adv, &updated,
			&c.ID, &c.Name, &c.Address, &c.Phone, &stdID, &c.Code, &registerAt, &deletedAt)
		if err != nil {
			return nil, err
		}
		if b.TotalDebt, err = decimal.NewFromString(debt); err != nil {
			return nil, err
		}
		if b.TotalAdvance, err = decimal.NewFromString(adv); err != nil {
			return nil, err
		}
		if b.UpdatedAt, err = time.Parse(timeFormat, updated); err != nil {
			return nil, err
		}
		c.STDID = stdID.String
		if c.RegisterAt, err = time.Parse(dateFormat, registerAt); err != nil {
			return nil, err
		}
		txs = append(txs, Transaction{Batch: b, Customer: c})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range txs {
		entries, err := loadEntries(ctx, s.db, txs[i].Batch.ID)
		if err != nil {
			return nil, err
		}
		txs[i].Batch.Months = entries
	}
	return txs, nil
}

func loadEntries(ctx context.Context, q querier, batchID string) ([]billing.MonthEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, payment_id, month, amount, paid_via, debt, advance,
		       payment_date, status, note, created_at
		FROM month_payments
		WHERE payment_id = ?
		ORDER BY month ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query month entries: %w", err)
	}
	defer rows.Close()

	var entries []billing.MonthEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// SaveCustomer inserts a customer. Duplicate codes are rejected with
// billing.ErrCustomerExists.
func (s *Store) SaveCustomer(ctx context.Context, c billing.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, address, phone, std_id, code, register_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Address, c.Phone, nullString(c.STDID), c.Code,
		c.RegisterAt.UTC().Format(dateFormat))
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.ErrCustomerExists
		}
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// ListCustomers returns all active customers, name-ascending.
func (s *Store) ListCustomers(ctx context.Context) ([]billing.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, std_id, code, register_at, deleted_at
		FROM customers
		WHERE deleted_at IS NULL
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []billing.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// UpdateCustomer overwrites the mutable fields of an active customer.
func (s *Store) UpdateCustomer(ctx context.Context, c billing.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = ?, address = ?, phone = ?, std_id = ?, code = ?
		WHERE id = ? AND deleted_at IS NULL
	`, c.Name, c.Address, c.Phone, nullString(c.STDID), c.Code, c.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.ErrCustomerExists
		}
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return requireRows(res, billing.ErrCustomerNotFound)
}

// SoftDeleteCustomer marks the customer deleted. History is retained;
// every query filters deleted customers out.
func (s *Store) SoftDeleteCustomer(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, at.UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return requireRows(res, billing.ErrCustomerNotFound)
}

// =============================================================================
// PLANS
// =============================================================================

func (s *Store) SavePlan(ctx context.Context, p billing.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, amount, profit) VALUES (?, ?, ?)
	`, p.ID, p.Amount.String(), p.Profit.String())
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

func (s *Store) ListPlans(ctx context.Context) ([]billing.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, amount, profit FROM plans`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []billing.Plan
	for rows.Next() {
		var (
			p              billing.Plan
			amount, profit string
		)
		if err := rows.Scan(&p.ID, &amount, &profit); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if p.Profit, err = decimal.NewFromString(profit); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *Store) UpdatePlan(ctx context.Context, p billing.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE plans SET amount = ?, profit = ? WHERE id = ?
	`, p.Amount.String(), p.Profit.String(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return requireRows(res, billing.ErrPlanNotFound)
}

func (s *Store) DeletePlan(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return requireRows(res, billing.ErrPlanNotFound)
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u billing.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, username) VALUES (?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Username)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.ErrUserExists
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, username FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []billing.User
	for rows.Next() {
		var u billing.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Username); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (*billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u billing.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, username FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// =============================================================================
// ANALYTICS QUERIES
// =============================================================================

// CountActiveCustomers returns the number of non-deleted customers.
func (s *Store) CountActiveCustomers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE deleted_at IS NULL`).Scan(&n)
	return n, err
}

// CountNewCustomers counts registrations in the given year, optionally
// narrowed to a month (month 0 = whole year).
func (s *Store) CountNewCustomers(ctx context.Context, year, month int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countByDate(ctx, "register_at", year, month)
}

// CountDeletedCustomers counts soft-deletions in the given year,
// optionally narrowed to a month.
func (s *Store) CountDeletedCustomers(ctx context.Context, year, month int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countByDate(ctx, "deleted_at", year, month)
}

func (s *Store) countByDate(ctx context.Context, column string, year, month int) (int, error) {
	// column is one of register_at / deleted_at, never user input.
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM customers
		WHERE %s IS NOT NULL AND CAST(strftime('%%Y', %s) AS INTEGER) = ?
	`, column, column)
	args := []any{year}
	if month != 0 {
		query += fmt.Sprintf(` AND CAST(strftime('%%m', %s) AS INTEGER) = ?`, column)
		args = append(args, month)
	}

	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// EntriesForYear returns every month entry of the given billing year for
// active customers. Analytics aggregates over these in memory.
func (s *Store) EntriesForYear(ctx context.Context, year int) ([]billing.MonthEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT mp.id, mp.payment_id, mp.month, mp.amount, mp.paid_via, mp.debt,
		       mp.advance, mp.payment_date, mp.status, mp.note, mp.created_at
		FROM month_payments mp
		JOIN payments p ON p.id = mp.payment_id
		JOIN customers c ON c.id = p.customer_id
		WHERE p.year = ? AND c.deleted_at IS NULL
		ORDER BY mp.month ASC
	`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for year: %w", err)
	}
	defer rows.Close()

	var entries []billing.MonthEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*billing.Customer, error) {
	var (
		c          billing.Customer
		stdID      sql.NullString
		registerAt string
		deletedAt  sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &stdID, &c.Code, &registerAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	c.STDID = stdID.String
	if c.RegisterAt, err = time.Parse(dateFormat, registerAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t, err := time.Parse(timeFormat, deletedAt.String)
		if err != nil {
			return nil, err
		}
		c.DeletedAt = &t
	}
	return &c, nil
}

func scanEntry(row rowScanner) (*billing.MonthEntry, error) {
	var (
		e                   billing.MonthEntry
		amount, debt, adv   string
		paidVia, note       sql.NullString
		payDate, createdAt  string
		status              string
	)
	err := row.Scan(&e.ID, &e.BatchID, &e.Month, &amount, &paidVia, &debt,
		&adv, &payDate, &status, &note, &createdAt)
	if err != nil {
		return nil, err
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if e.Debt, err = decimal.NewFromString(debt); err != nil {
		return nil, err
	}
	if e.Advance, err = decimal.NewFromString(adv); err != nil {
		return nil, err
	}
	if e.PaymentDate, err = time.Parse(timeFormat, payDate); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, err
	}
	e.PaidVia = paidVia.String
	e.Note = note.String
	e.Status = billing.Status(status)
	return &e, nil
}

func scanBatches(rows *sql.Rows) ([]billing.PaymentBatch, error) {
	var batches []billing.PaymentBatch
	for rows.Next() {
		var (
			b         billing.PaymentBatch
			debt, adv string
			updated   string
		)
		err := rows.Scan(&b.ID, &b.CustomerID, &b.Year, &debt, &adv, &updated)
		if err != nil {
			return nil, err
		}
		if b.TotalDebt, err = decimal.NewFromString(debt); err != nil {
			return nil, err
		}
		if b.TotalAdvance, err = decimal.NewFromString(adv); err != nil {
			return nil, err
		}
		if b.UpdatedAt, err = time.Parse(timeFormat, updated); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func requireRows(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
