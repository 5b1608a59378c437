/*
handlers.go - HTTP handlers for the billing API

PURPOSE:
  Exposes the billing engine over REST. Handlers decode and validate
  requests, delegate to the billing workflow or the store, and write the
  {status, message, data} envelope.

ENDPOINTS:
  Bills:
    POST   /api/bills                        Create a bill (core workflow)
    GET    /api/bills/customer/{id}          A customer's batches (?year=)
    GET    /api/bills/transactions           All transactions
    GET    /api/bills/transactions/recent    Latest activity
    DELETE /api/bills/transactions/{id}      Delete a whole batch

  Customers:
    POST/GET /api/customers, GET/PUT/DELETE /api/customers/{id}

  Plans:
    GET/POST /api/plans, PUT/DELETE /api/plans/{id}

  Users:
    POST/GET /api/users, GET /api/users/{id}

  Analytics:
    GET /api/analytics?year=&month=&viewType=Monthly|Yearly

ERROR HANDLING:
  Domain errors map to status codes by kind: validation and business
  rejections 400, missing records 404, storage failures 500. Raw storage
  errors are never surfaced verbatim.

SEE ALSO:
  - dto.go: Wire shapes and conversions
  - server.go: Router and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/analytics"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

const recentTransactionLimit = 15

var validate = validator.New()

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Bills *billing.Service
	Clock billing.Clock
}

// NewHandler wires a handler around the store with default workflow
// settings.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store: store,
		Bills: billing.NewService(store),
		Clock: billing.SystemClock,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "API is healthy", nil)
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

// CreateBill runs the bill-creation workflow.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	in := billing.CreateBillInput{
		CustomerID: req.CustomerID,
		Year:       req.Year,
		StartMonth: req.StartMonth,
		EndMonth:   req.EndMonth,
		Amount:     decimal.NewFromFloat(req.Amount),
		PaidVia:    req.PaidVia,
		WasOff:     req.WasOff,
		Note:       req.Note,
	}
	if req.MonthlyAmount != 0 {
		in.MonthlyRate = decimal.NewFromFloat(req.MonthlyAmount)
	}
	if req.PaymentDate != "" {
		// Format is guaranteed by the validator tag.
		in.PaymentDate, _ = time.Parse(time.RFC3339, req.PaymentDate)
	}

	batch, err := h.Bills.CreateBill(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err, "Error creating bill")
		return
	}

	writeSuccess(w, http.StatusCreated, "Payment created successfully", toPaymentBatchDTO(*batch))
}

// GetCustomerBills lists a customer's batches, optionally filtered by year.
func (h *Handler) GetCustomerBills(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	year := queryInt(r, "year")

	batches, err := h.Store.ListBatchesByCustomer(r.Context(), customerID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching bills")
		return
	}

	writeSuccess(w, http.StatusOK, "Bills fetched successfully", toPaymentBatchDTOs(batches))
}

// ListTransactions returns every batch with its customer.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	h.listTransactions(w, r, 0, "Transactions fetched successfully")
}

// RecentTransactions returns the latest activity.
func (h *Handler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	h.listTransactions(w, r, recentTransactionLimit, "Recent transactions fetched successfully")
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request, limit int, message string) {
	txs, err := h.Store.ListTransactions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching transactions")
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeSuccess(w, http.StatusOK, message, dtos)
}

// DeleteTransaction removes a batch and all its month entries together.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Bills.DeleteBatch(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "Error deleting transaction")
		return
	}
	writeSuccess(w, http.StatusOK, "Transaction deleted successfully", nil)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// CreateCustomer registers a subscriber.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	customer := billing.Customer{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Address:    req.Address,
		Phone:      req.Phone,
		STDID:      req.STDID,
		Code:       req.CustomerID,
		RegisterAt: h.Clock(),
	}

	if err := h.Store.SaveCustomer(r.Context(), customer); err != nil {
		h.writeDomainError(w, err, "Error creating customer")
		return
	}
	writeSuccess(w, http.StatusCreated, "Customer created successfully", toCustomerDTO(customer))
}

// ListCustomers returns all active customers with their batches and a
// bill summary each.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customers, err := h.Store.ListCustomers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching customers")
		return
	}

	dtos := make([]CustomerWithBillsDTO, 0, len(customers))
	for _, c := range customers {
		batches, err := h.Store.ListBatchesByCustomer(ctx, c.ID, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Error fetching customers")
			return
		}
		dtos = append(dtos, CustomerWithBillsDTO{
			CustomerDTO: toCustomerDTO(c),
			Payments:    toPaymentBatchDTOs(batches),
			BillSummary: toBillSummaryDTO(billing.Summarize(batches)),
		})
	}
	writeSuccess(w, http.StatusOK, "Customers fetched successfully", dtos)
}

// GetCustomer returns one customer with batches, summary, and per-year
// history. ?year= narrows the batches.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	year := queryInt(r, "year")

	customer, err := h.Store.FindCustomer(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching customer")
		return
	}
	if customer == nil {
		writeError(w, http.StatusNotFound, "Customer not found")
		return
	}

	batches, err := h.Store.ListBatchesByCustomer(ctx, id, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching customer")
		return
	}

	history := make([]YearHistoryDTO, 0)
	byYear := map[int]int{} // year -> index into history
	for _, b := range batches {
		idx, ok := byYear[b.Year]
		if !ok {
			idx = len(history)
			byYear[b.Year] = idx
			history = append(history, YearHistoryDTO{Year: b.Year})
		}
		for _, e := range b.Months {
			history[idx].Months = append(history[idx].Months, toMonthEntryDTO(e))
		}
	}

	writeSuccess(w, http.StatusOK, "Customer details fetched successfully", CustomerDetailDTO{
		CustomerWithBillsDTO: CustomerWithBillsDTO{
			CustomerDTO: toCustomerDTO(*customer),
			Payments:    toPaymentBatchDTOs(batches),
			BillSummary: toBillSummaryDTO(billing.Summarize(batches)),
		},
		PaymentHistory: history,
	})
}

// UpdateCustomer applies a partial update.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req UpdateCustomerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	customer, err := h.Store.FindCustomer(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error updating customer")
		return
	}
	if customer == nil {
		writeError(w, http.StatusNotFound, "Customer not found")
		return
	}

	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.CustomerID != nil {
		customer.Code = *req.CustomerID
	}
	if req.STDID != nil {
		customer.STDID = *req.STDID
	}

	if err := h.Store.UpdateCustomer(ctx, *customer); err != nil {
		h.writeDomainError(w, err, "Error updating customer")
		return
	}
	writeSuccess(w, http.StatusOK, "Customer updated successfully", toCustomerDTO(*customer))
}

// DeleteCustomer soft-deletes a customer; history stays behind.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.SoftDeleteCustomer(r.Context(), id, h.Clock()); err != nil {
		h.writeDomainError(w, err, "Error deleting customer")
		return
	}
	writeSuccess(w, http.StatusOK, "Customer deleted successfully", nil)
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching plans")
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeSuccess(w, http.StatusOK, "Plans fetched successfully", dtos)
}

// CreatePlan adds an amount -> profit mapping.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	plan := billing.Plan{
		ID:     uuid.NewString(),
		Amount: decimal.NewFromFloat(req.Amount),
		Profit: decimal.NewFromFloat(req.Profit),
	}
	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating plan")
		return
	}
	writeSuccess(w, http.StatusCreated, "Plan created successfully", toPlanDTO(plan))
}

// UpdatePlan replaces a plan's amount and profit.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	plan := billing.Plan{
		ID:     chi.URLParam(r, "id"),
		Amount: decimal.NewFromFloat(req.Amount),
		Profit: decimal.NewFromFloat(req.Profit),
	}
	if err := h.Store.UpdatePlan(r.Context(), plan); err != nil {
		h.writeDomainError(w, err, "Error updating plan")
		return
	}
	writeSuccess(w, http.StatusOK, "Plan updated successfully", toPlanDTO(plan))
}

// DeletePlan removes a plan.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeletePlan(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err, "Error deleting plan")
		return
	}
	writeSuccess(w, http.StatusOK, "Plan deleted successfully", nil)
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser registers an operator account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	user := billing.User{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
	}
	if err := h.Store.SaveUser(r.Context(), user); err != nil {
		h.writeDomainError(w, err, "Error creating user")
		return
	}
	writeSuccess(w, http.StatusCreated, "User created successfully", toUserDTO(user))
}

// ListUsers returns all operator accounts.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching users")
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeSuccess(w, http.StatusOK, "Users fetched successfully", dtos)
}

// GetUser returns one operator account.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeSuccess(w, http.StatusOK, "User fetched successfully", toUserDTO(*user))
}

// =============================================================================
// ANALYTICS HANDLER
// =============================================================================

// GetAnalytics aggregates the dashboard for a year or a single month.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.Clock()

	year := queryInt(r, "year")
	if year == 0 {
		year = now.Year()
	}
	month := queryInt(r, "month")
	view := analytics.ViewMonthly
	if r.URL.Query().Get("viewType") == string(analytics.ViewYearly) {
		view = analytics.ViewYearly
	}
	if view == analytics.ViewMonthly && month == 0 {
		month = int(now.Month())
	}

	movementMonth := 0
	if view == analytics.ViewMonthly {
		movementMonth = month
	}

	total, err := h.Store.CountActiveCustomers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching analytics data")
		return
	}
	newCount, err := h.Store.CountNewCustomers(ctx, year, movementMonth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching analytics data")
		return
	}
	deletedCount, err := h.Store.CountDeletedCustomers(ctx, year, movementMonth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching analytics data")
		return
	}
	entries, err := h.Store.EntriesForYear(ctx, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching analytics data")
		return
	}
	plans, err := h.Store.ListPlans(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching analytics data")
		return
	}

	report := analytics.Compute(analytics.Input{
		Entries:          entries,
		Plans:            plans,
		TotalCustomers:   total,
		NewCustomers:     newCount,
		DeletedCustomers: deletedCount,
		Month:            month,
		View:             view,
	})
	writeSuccess(w, http.StatusOK, "Analytics data fetched successfully", toAnalyticsDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeValid decodes the JSON body into dst and runs struct validation.
// On failure it writes the 400 response and returns false.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// Raw storage errors stay server-side.
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Status: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Status: false, Message: message})
}
