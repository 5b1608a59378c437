/*
dto.go - Request and response shapes for the REST API

PURPOSE:
  Decouples the wire contract from the domain model. Responses use the
  {status, message, data} envelope the mobile client expects. Money
  crosses the wire as float64; internally everything is decimal.

VALIDATION:
  Request structs carry go-playground/validator tags; handlers run them
  through the shared validator before touching the domain. Deeper
  business validation (month windows, thresholds) lives in the
  billing workflow, not here.

SEE ALSO:
  - handlers.go: Decoding, validation, and envelope writing
  - billing: Domain types these DTOs mirror
*/
package api

import (
	"time"

	"github.com/warp/billing-engine/analytics"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Response is the uniform API envelope.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateBillRequest is one billing submission.
type CreateBillRequest struct {
	CustomerID    string  `json:"customerId" validate:"required"`
	Year          int     `json:"year" validate:"omitempty,min=2000,max=2100"`
	MonthlyAmount float64 `json:"monthlyAmount" validate:"omitempty,gt=0"`
	StartMonth    int     `json:"startMonth" validate:"required,min=1,max=12"`
	EndMonth      int     `json:"endMonth" validate:"omitempty,min=1,max=12"`
	Amount        float64 `json:"amount" validate:"min=0"`
	PaidVia       string  `json:"paidVia"`
	PaymentDate   string  `json:"paymentDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	WasOff        bool    `json:"wasOff"`
	Note          string  `json:"note"`
}

// CreateCustomerRequest registers a subscriber.
type CreateCustomerRequest struct {
	Name       string `json:"name" validate:"required"`
	Address    string `json:"address" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	CustomerID string `json:"customerId" validate:"required"`
	STDID      string `json:"stdId"`
}

// UpdateCustomerRequest is a partial update; nil fields stay unchanged.
type UpdateCustomerRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1"`
	Address    *string `json:"address" validate:"omitempty,min=1"`
	Phone      *string `json:"phone" validate:"omitempty,min=1"`
	CustomerID *string `json:"customerId" validate:"omitempty,min=1"`
	STDID      *string `json:"stdId"`
}

// PlanRequest creates or replaces a plan.
type PlanRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Profit float64 `json:"profit" validate:"min=0"`
}

// CreateUserRequest registers an operator account.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// MonthEntryDTO is one month's slice of a batch.
type MonthEntryDTO struct {
	ID          string  `json:"id"`
	Month       int     `json:"month"`
	Amount      float64 `json:"amount"`
	PaidVia     string  `json:"paidVia,omitempty"`
	PaymentDate string  `json:"paymentDate"`
	Status      string  `json:"status"`
	Debt        float64 `json:"debt"`
	Advance     float64 `json:"advance"`
	Note        string  `json:"note,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

// PaymentBatchDTO is a batch header with its months.
type PaymentBatchDTO struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customerId"`
	Year         int             `json:"year"`
	TotalDebt    float64         `json:"totalDebt"`
	TotalAdvance float64         `json:"totalAdvance"`
	UpdatedAt    string          `json:"updatedAt"`
	Months       []MonthEntryDTO `json:"months"`
}

// CustomerDTO is a subscriber record.
type CustomerDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	STDID      string `json:"stdId,omitempty"`
	CustomerID string `json:"customerId"`
	RegisterAt string `json:"registerAt"`
}

// BillSummaryDTO aggregates a customer's history.
type BillSummaryDTO struct {
	TotalPaid    float64 `json:"totalPaid"`
	TotalDebt    float64 `json:"totalDebt"`
	TotalAdvance float64 `json:"totalAdvance"`
}

// CustomerWithBillsDTO is the customer listing/detail shape.
type CustomerWithBillsDTO struct {
	CustomerDTO
	Payments    []PaymentBatchDTO `json:"payments"`
	BillSummary BillSummaryDTO    `json:"billSummary"`
}

// YearHistoryDTO groups a customer's month entries under one year.
type YearHistoryDTO struct {
	Year   int             `json:"year"`
	Months []MonthEntryDTO `json:"months"`
}

// CustomerDetailDTO is the single-customer detail shape.
type CustomerDetailDTO struct {
	CustomerWithBillsDTO
	PaymentHistory []YearHistoryDTO `json:"paymentHistory"`
}

// TransactionDTO is a batch joined with its customer.
type TransactionDTO struct {
	PaymentBatchDTO
	Customer CustomerDTO `json:"customer"`
}

// PlanDTO is a plan record.
type PlanDTO struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
	Profit float64 `json:"profit"`
}

// UserDTO is an operator account.
type UserDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// AnalyticsDTO is the dashboard payload.
type AnalyticsDTO struct {
	TotalCustomers   int                 `json:"totalCustomers"`
	CustomerMovement CustomerMovementDTO `json:"customerMovement"`
	Revenue          float64             `json:"revenue"`
	Profit           float64             `json:"profit"`
	PaymentMethods   map[string]float64  `json:"paymentMethods"`
	TotalDebt        float64             `json:"totalDebt"`
	TotalAdvance     float64             `json:"totalAdvance"`
	PaymentRate      int                 `json:"paymentRate"`
}

// CustomerMovementDTO tracks churn in the analytics window.
type CustomerMovementDTO struct {
	New     int `json:"new"`
	Deleted int `json:"deleted"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMonthEntryDTO(e billing.MonthEntry) MonthEntryDTO {
	amount, _ := e.Amount.Float64()
	debt, _ := e.Debt.Float64()
	advance, _ := e.Advance.Float64()
	return MonthEntryDTO{
		ID:          e.ID,
		Month:       e.Month,
		Amount:      amount,
		PaidVia:     e.PaidVia,
		PaymentDate: e.PaymentDate.Format(time.RFC3339),
		Status:      string(e.Status),
		Debt:        debt,
		Advance:     advance,
		Note:        e.Note,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentBatchDTO(b billing.PaymentBatch) PaymentBatchDTO {
	totalDebt, _ := b.TotalDebt.Float64()
	totalAdvance, _ := b.TotalAdvance.Float64()
	months := make([]MonthEntryDTO, len(b.Months))
	for i, e := range b.Months {
		months[i] = toMonthEntryDTO(e)
	}
	return PaymentBatchDTO{
		ID:           b.ID,
		CustomerID:   b.CustomerID,
		Year:         b.Year,
		TotalDebt:    totalDebt,
		TotalAdvance: totalAdvance,
		UpdatedAt:    b.UpdatedAt.Format(time.RFC3339),
		Months:       months,
	}
}

func toPaymentBatchDTOs(batches []billing.PaymentBatch) []PaymentBatchDTO {
	dtos := make([]PaymentBatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toPaymentBatchDTO(b)
	}
	return dtos
}

func toCustomerDTO(c billing.Customer) CustomerDTO {
	return CustomerDTO{
		ID:         c.ID,
		Name:       c.Name,
		Address:    c.Address,
		Phone:      c.Phone,
		STDID:      c.STDID,
		CustomerID: c.Code,
		RegisterAt: c.RegisterAt.Format("2006-01-02"),
	}
}

func toBillSummaryDTO(s billing.BillSummary) BillSummaryDTO {
	paid, _ := s.TotalPaid.Float64()
	debt, _ := s.TotalDebt.Float64()
	advance, _ := s.TotalAdvance.Float64()
	return BillSummaryDTO{TotalPaid: paid, TotalDebt: debt, TotalAdvance: advance}
}

func toTransactionDTO(tx sqlite.Transaction) TransactionDTO {
	return TransactionDTO{
		PaymentBatchDTO: toPaymentBatchDTO(tx.Batch),
		Customer:        toCustomerDTO(tx.Customer),
	}
}

func toPlanDTO(p billing.Plan) PlanDTO {
	amount, _ := p.Amount.Float64()
	profit, _ := p.Profit.Float64()
	return PlanDTO{ID: p.ID, Amount: amount, Profit: profit}
}

func toUserDTO(u billing.User) UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, Username: u.Username}
}

func toAnalyticsDTO(r analytics.Report) AnalyticsDTO {
	revenue, _ := r.Revenue.Float64()
	profit, _ := r.Profit.Float64()
	debt, _ := r.TotalDebt.Float64()
	advance, _ := r.TotalAdvance.Float64()

	methods := make(map[string]float64, len(r.PaymentMethods))
	for via, amount := range r.PaymentMethods {
		methods[via], _ = amount.Float64()
	}

	return AnalyticsDTO{
		TotalCustomers: r.TotalCustomers,
		CustomerMovement: CustomerMovementDTO{
			New:     r.CustomerMovement.New,
			Deleted: r.CustomerMovement.Deleted,
		},
		Revenue:        revenue,
		Profit:         profit,
		PaymentMethods: methods,
		TotalDebt:      debt,
		TotalAdvance:   advance,
		PaymentRate:    r.PaymentRate,
	}
}
