package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	intdb "settlement/internal/db"
	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/events"
	"settlement/internal/gateway"
	"settlement/internal/repositories"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	receipts []models.Receipt
}

func (n *recordingNotifier) ReceiptReady(_ context.Context, rc models.Receipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, rc)
	return nil
}

type harness struct {
	db       *sql.DB
	svc      SettlementService
	events   *recordingPublisher
	notifier *recordingNotifier
}

func newHarness(t *testing.T, gw gateway.Gateway) *harness {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err := intdb.Migrate(context.Background(), db, intdb.DialectSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := &harness{db: db, events: &recordingPublisher{}, notifier: &recordingNotifier{}}
	h.svc = NewSettlementService(db, intdb.NewTxManager(db, intdb.DialectSQLite), gw)
	h.svc.Events = h.events
	h.svc.Notifier = h.notifier
	return h
}

func (h *harness) seedBooking(t *testing.T, id, total string) {
	t.Helper()
	err := repositories.BookingRepository{DB: h.db}.Insert(context.Background(), models.Booking{
		ID: id, Reference: "BK-" + id, UserID: "u1", TotalAmount: decimal.RequireFromString(total),
		Currency: "USD", Status: models.BookingPending, CreatedAt: testNow, UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

func (h *harness) seedAccount(t *testing.T) {
	t.Helper()
	repo := repositories.AccountRepository{DB: h.db}
	ctx := context.Background()
	if err := repo.InsertUser(ctx, "u1", "Ada Lovelace", "ada@example.com", testNow); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	err := repo.InsertPaymentMethod(ctx, models.PaymentMethod{
		ID: "pm1", UserID: "u1", Type: models.MethodCreditCard, CardBrand: "Visa", CardLastFour: "4242", ProviderToken: "pm_card_visa",
	}, testNow)
	if err != nil {
		t.Fatalf("seed payment method: %v", err)
	}
}

func (h *harness) booking(t *testing.T, id string) models.Booking {
	t.Helper()
	b, err := repositories.BookingRepository{DB: h.db}.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load booking: %v", err)
	}
	return b
}

func (h *harness) transactions(t *testing.T, f models.TransactionFilter) []models.PaymentTransaction {
	t.Helper()
	items, _, err := repositories.TransactionRepository{DB: h.db}.Search(context.Background(), f, domain.Pagination{Limit: domain.MaxPageSize})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	return items
}

func (h *harness) pay(t *testing.T, bookingID, amount string) PaymentResult {
	t.Helper()
	res, err := h.svc.ProcessPayment(context.Background(), PaymentRequest{
		BookingID: bookingID, Amount: decimal.RequireFromString(amount), CardNumber: "4242 4242 4242 4242",
		PaymentMethodType: models.MethodCreditCard,
	})
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	return res
}

func amountPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }
