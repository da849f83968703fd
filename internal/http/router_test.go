package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	intconfig "settlement/internal/config"
	intdb "settlement/internal/db"
	"settlement/internal/domain/models"
	"settlement/internal/gateway"
	h "settlement/internal/http/handlers"
	"settlement/internal/repositories"
	"settlement/internal/services"
)

func newTestServer(t *testing.T, gw gateway.Gateway) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	if err := intdb.Migrate(context.Background(), conn, intdb.DialectSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	err = repositories.BookingRepository{DB: conn}.Insert(context.Background(), models.Booking{
		ID: "b1", Reference: "BK-1", TotalAmount: decimal.RequireFromString("500.00"), Currency: "USD",
		Status: models.BookingPending, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	svc := services.NewSettlementService(conn, intdb.NewTxManager(conn, intdb.DialectSQLite), gw)
	api := h.API{
		Settlement: svc,
		Docs:       services.DocsService{Invoices: svc.Invoices, Receipts: svc.Receipts},
		DB:         conn,
	}
	env := intconfig.Env{CORSAllowedOrigins: "*"}
	return NewRouter(env, api), conn
}

func call(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestPaymentRefundFlow(t *testing.T) {
	r, _ := newTestServer(t, gateway.AlwaysSucceed{})

	w := call(t, r, http.MethodPost, "/api/bookings/b1/payments", map[string]any{"amount": "500.00", "card_number": "5555555555554444"})
	if w.Code != http.StatusCreated {
		t.Fatalf("payment: status %d body %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"total_amount":"575.00"`)) {
		t.Fatalf("invoice total not rendered with two places: %s", w.Body.String())
	}
	paid := decode[services.PaymentResult](t, w)
	if paid.Invoice == nil || paid.Invoice.TotalAmount.StringFixed(2) != "575.00" {
		t.Fatalf("unexpected invoice %+v", paid.Invoice)
	}
	if paid.Receipt == nil || paid.Receipt.PaymentMethod != "Mastercard ending in 4444" {
		t.Fatalf("unexpected receipt %+v", paid.Receipt)
	}

	w = call(t, r, http.MethodGet, "/api/transactions/"+paid.Transaction.TransactionNumber, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get transaction by number: %d", w.Code)
	}

	w = call(t, r, http.MethodPost, "/api/transactions/"+paid.Transaction.ID+"/refunds", map[string]any{"amount": 200, "reason": "changed plans"})
	if w.Code != http.StatusCreated {
		t.Fatalf("refund: status %d body %s", w.Code, w.Body.String())
	}
	refund := decode[services.RefundResult](t, w)
	if refund.Transaction.Status != models.TransactionPartiallyRefunded {
		t.Fatalf("unexpected status %s", refund.Transaction.Status)
	}

	w = call(t, r, http.MethodPost, "/api/transactions/"+paid.Transaction.ID+"/refunds", map[string]any{"amount": "400.00"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("over-refund: expected 400, got %d", w.Code)
	}

	w = call(t, r, http.MethodGet, "/api/transactions?booking_id=b1&limit=1", nil)
	page := decode[struct {
		Items []models.PaymentTransaction `json:"items"`
		Total int                         `json:"total"`
		Limit int                         `json:"limit"`
	}](t, w)
	if w.Code != http.StatusOK || page.Total != 2 || len(page.Items) != 1 || page.Limit != 1 {
		t.Fatalf("list: status %d page %+v", w.Code, page)
	}

	w = call(t, r, http.MethodGet, "/api/invoices/"+paid.Invoice.InvoiceNumber+"/pdf", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("invoice pdf: status %d type %q", w.Code, w.Header().Get("Content-Type"))
	}
	w = call(t, r, http.MethodGet, "/api/bookings/b1/receipts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("booking receipts: %d", w.Code)
	}
}

func TestPaymentErrorsMapToStatus(t *testing.T) {
	r, _ := newTestServer(t, gateway.AlwaysFail{Reason: "card declined"})

	cases := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"missing amount", "/api/bookings/b1/payments", map[string]any{"currency": "USD"}, http.StatusBadRequest},
		{"mismatch", "/api/bookings/b1/payments", map[string]any{"amount": "450.00"}, http.StatusBadRequest},
		{"unknown booking", "/api/bookings/nope/payments", map[string]any{"amount": "1.00"}, http.StatusNotFound},
		{"declined", "/api/bookings/b1/payments", map[string]any{"amount": "500.00"}, http.StatusPaymentRequired},
	}
	for _, tc := range cases {
		if w := call(t, r, http.MethodPost, tc.path, tc.body); w.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.status, w.Code, w.Body.String())
		}
	}

	if w := call(t, r, http.MethodGet, "/api/receipts/RCP-2026-000000", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown receipt: expected 404, got %d", w.Code)
	}
	if w := call(t, r, http.MethodGet, "/api/transactions?from=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad from: expected 400, got %d", w.Code)
	}
}

func TestSystemRoutes(t *testing.T) {
	r, _ := newTestServer(t, gateway.AlwaysSucceed{})
	if w := call(t, r, http.MethodGet, "/api/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	if w := call(t, r, http.MethodGet, "/api/db-check", nil); w.Code != http.StatusOK {
		t.Fatalf("db-check: %d body %s", w.Code, w.Body.String())
	}
	if w := call(t, r, http.MethodGet, "/api/nowhere", nil); w.Code != http.StatusNotFound {
		t.Fatalf("no route: %d", w.Code)
	}
}
