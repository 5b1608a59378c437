/*
handlers_test.go - HTTP-level tests for the billing API

Exercises the full stack through the router: routing, validation,
envelope shape, status codes, and the handler-to-workflow wiring.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestAPI(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	h.Clock = func() time.Time { return testNow }
	h.Bills.Clock = h.Clock
	return h, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func createCustomer(t *testing.T, router http.Handler, code string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/customers", map[string]any{
		"name":       "Priya Sharma",
		"address":    "44 Temple Street",
		"phone":      "9000000000",
		"customerId": code,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	return data["id"].(string)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Status)
	assert.Equal(t, "API is healthy", resp.Message)
}

// =============================================================================
// BILLS
// =============================================================================

func TestCreateBill_Success(t *testing.T) {
	// GIVEN: A registered customer
	// WHEN: A fully-paid single-month bill is posted
	// THEN: 201 with the persisted batch in the envelope

	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
		"customerId": id,
		"startMonth": 6,
		"amount":     310,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2025), data["year"])

	months := data["months"].([]any)
	require.Len(t, months, 1)
	first := months[0].(map[string]any)
	assert.Equal(t, string(billing.StatusPaid), first["status"])
	assert.Equal(t, "Cash", first["paidVia"])
}

func TestCreateBill_UnknownCustomer_404(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
		"customerId": "ghost",
		"startMonth": 6,
		"amount":     310,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Status)
}

func TestCreateBill_BelowMinimum_400(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
		"customerId": id,
		"startMonth": 6,
		"amount":     50,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Status)
	assert.Contains(t, resp.Message, "minimum required amount")
}

func TestCreateBill_Duplicate_400(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	payload := map[string]any{"customerId": id, "startMonth": 6, "amount": 310}
	rec := doJSON(t, router, http.MethodPost, "/api/bills", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/bills", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.Contains(t, resp.Message, "already billed")
}

func TestCreateBill_MissingMonth_400(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
		"customerId": id,
		"amount":     310,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCustomerBills_YearFilter(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
		"customerId": id, "year": 2024, "startMonth": 6, "amount": 310,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
		"customerId": id, "year": 2025, "startMonth": 6, "amount": 310,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/bills/customer/"+id+"?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	batches := resp.Data.([]any)
	require.Len(t, batches, 1)
	assert.Equal(t, float64(2024), batches[0].(map[string]any)["year"])
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTransactions_ListRecentDelete(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	for month := 1; month <= 3; month++ {
		rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
			"customerId": id, "year": 2025, "startMonth": month, "amount": 310,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/bills/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	txs := resp.Data.([]any)
	require.Len(t, txs, 3)

	// Each transaction carries its customer.
	first := txs[0].(map[string]any)
	customer := first["customer"].(map[string]any)
	assert.Equal(t, "CUST-1", customer["customerId"])

	rec = doJSON(t, router, http.MethodGet, "/api/bills/transactions/recent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeEnvelope(t, rec)
	assert.Len(t, resp.Data.([]any), 3)

	// Delete one and watch the listing shrink.
	batchID := first["id"].(string)
	rec = doJSON(t, router, http.MethodDelete, "/api/bills/transactions/"+batchID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/bills/transactions", nil)
	resp = decodeEnvelope(t, rec)
	assert.Len(t, resp.Data.([]any), 2)
}

func TestDeleteTransaction_Unknown_404(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodDelete, "/api/bills/transactions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCreateCustomer_Validation(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/customers", map[string]any{
		"name": "No Address",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCustomer_DuplicateCode_400(t *testing.T) {
	_, router := newTestAPI(t)
	createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodPost, "/api/customers", map[string]any{
		"name":       "Second",
		"address":    "Elsewhere",
		"phone":      "123",
		"customerId": "CUST-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCustomers_IncludesBillSummary(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
		"customerId": id, "startMonth": 6, "amount": 300,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	customers := resp.Data.([]any)
	require.Len(t, customers, 1)

	c := customers[0].(map[string]any)
	summary := c["billSummary"].(map[string]any)
	assert.Equal(t, float64(300), summary["totalPaid"])
	assert.Equal(t, float64(10), summary["totalDebt"])
}

func TestGetCustomer_DetailWithHistory(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
		"customerId": id, "year": 2025, "startMonth": 6, "endMonth": 7, "amount": 620,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/customers/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "CUST-1", data["customerId"])

	history := data["paymentHistory"].([]any)
	require.Len(t, history, 1)
	year := history[0].(map[string]any)
	assert.Equal(t, float64(2025), year["year"])
	assert.Len(t, year["months"].([]any), 2)
}

func TestGetCustomer_Unknown_404(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/customers/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCustomer_Partial(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodPut, "/api/customers/"+id, map[string]any{
		"phone": "8888888888",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "8888888888", data["phone"])
	assert.Equal(t, "Priya Sharma", data["name"], "untouched fields stay")
}

func TestDeleteCustomer_SoftDelete(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	rec := doJSON(t, router, http.MethodDelete, "/api/customers/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/customers", nil)
	resp := decodeEnvelope(t, rec)
	assert.Empty(t, resp.Data)

	rec = doJSON(t, router, http.MethodDelete, "/api/customers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "second delete finds nothing")
}

// =============================================================================
// PLANS
// =============================================================================

func TestPlans_CRUD(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/plans", map[string]any{
		"amount": 310, "profit": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeEnvelope(t, rec)
	planID := resp.Data.(map[string]any)["id"].(string)

	rec = doJSON(t, router, http.MethodPut, "/api/plans/"+planID, map[string]any{
		"amount": 310, "profit": 75,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/plans", nil)
	resp = decodeEnvelope(t, rec)
	plans := resp.Data.([]any)
	require.Len(t, plans, 1)
	assert.Equal(t, float64(75), plans[0].(map[string]any)["profit"])

	rec = doJSON(t, router, http.MethodDelete, "/api/plans/"+planID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/plans/"+planID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePlan_Validation(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/plans", map[string]any{
		"profit": 60,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "amount is required")
}

// =============================================================================
// USERS
// =============================================================================

func TestUsers_CreateAndFetch(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]any{
		"name": "Operator", "email": "op@example.com", "username": "operator",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeEnvelope(t, rec)
	userID := resp.Data.(map[string]any)["id"].(string)

	rec = doJSON(t, router, http.MethodGet, "/api/users/"+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Duplicate email rejected.
	rec = doJSON(t, router, http.MethodPost, "/api/users", map[string]any{
		"name": "Other", "email": "op@example.com", "username": "other",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bad email rejected by validation.
	rec = doJSON(t, router, http.MethodPost, "/api/users", map[string]any{
		"name": "Bad", "email": "not-an-email", "username": "badmail",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ANALYTICS
// =============================================================================

func TestAnalytics_YearlyView(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/plans", map[string]any{
		"amount": 310, "profit": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	id := createCustomer(t, router, "CUST-1")
	for month := 1; month <= 2; month++ {
		rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
			"customerId": id, "year": 2025, "startMonth": month, "amount": 310,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/analytics?year=2025&viewType=Yearly", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(620), data["revenue"])
	assert.Equal(t, float64(120), data["profit"])
	assert.Equal(t, float64(1), data["totalCustomers"])
	assert.Equal(t, float64(100), data["paymentRate"])

	methods := data["paymentMethods"].(map[string]any)
	assert.Equal(t, float64(620), methods["Cash"])

	movement := data["customerMovement"].(map[string]any)
	assert.Equal(t, float64(1), movement["new"], "customer registered in 2025")
}

func TestAnalytics_MonthlyView(t *testing.T) {
	_, router := newTestAPI(t)
	id := createCustomer(t, router, "CUST-1")

	for _, month := range []int{6, 7} {
		rec := doJSON(t, router, http.MethodPost, "/api/bills", map[string]any{
			"customerId": id, "year": 2025, "startMonth": month, "amount": 310,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/analytics?year=2025&month=6&viewType=Monthly", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(310), data["revenue"], "only June counts")
}
