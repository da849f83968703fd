package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"settlement/internal/domain/models"
)

func sampleInvoice(id, number, bookingID string) models.Invoice {
	paid := testNow
	return models.Invoice{
		ID: id, InvoiceNumber: number, BookingID: bookingID, UserID: "u1", TransactionID: "t1",
		Status: models.InvoicePaid, InvoiceDate: testNow, PaidAt: &paid,
		Subtotal: decimal.RequireFromString("500.00"), Taxes: decimal.RequireFromString("50.00"),
		Fees: decimal.RequireFromString("25.00"), Discount: decimal.Zero, TotalAmount: decimal.RequireFromString("575.00"),
		Currency: "USD", Billing: models.BillingInfo{Name: "Ada Lovelace", Email: "ada@example.com", City: "London"},
		TaxBreakdown: []models.TaxLine{
			{Name: "Service Tax", Rate: decimal.RequireFromString("0.10"), Amount: decimal.RequireFromString("50.00")},
			{Name: "Processing Fee", Rate: decimal.RequireFromString("0.05"), Amount: decimal.RequireFromString("25.00")},
		},
		CreatedAt: testNow,
	}
}

func TestInvoiceRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := InvoiceRepository{DB: db}
	ctx := context.Background()

	if err := repo.Insert(ctx, sampleInvoice("i1", "INV-2026-000001", "b1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := repo.FindByBooking(ctx, "b1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.TotalAmount.StringFixed(2) != "575.00" || got.Billing.Name != "Ada Lovelace" {
		t.Fatalf("unexpected invoice %+v", got)
	}
	if len(got.TaxBreakdown) != 2 || got.TaxBreakdown[0].Name != "Service Tax" || got.TaxBreakdown[1].Amount.StringFixed(2) != "25.00" {
		t.Fatalf("breakdown not preserved: %+v", got.TaxBreakdown)
	}

	list, err := repo.ListByBooking(ctx, "b1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
}

func TestInvoiceUniqueKeys(t *testing.T) {
	db := openTestDB(t)
	repo := InvoiceRepository{DB: db}
	ctx := context.Background()
	_ = repo.Insert(ctx, sampleInvoice("i1", "INV-2026-000001", "b1"))

	if err := repo.Insert(ctx, sampleInvoice("i2", "INV-2026-000002", "b1")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second invoice for booking: expected ErrAlreadyExists, got %v", err)
	}
	if err := repo.Insert(ctx, sampleInvoice("i3", "INV-2026-000001", "b2")); !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("reused number: expected ErrDuplicateNumber, got %v", err)
	}
}

func TestInvoiceDuplicateBookingMySQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()
	mock.ExpectExec("INSERT INTO invoices").WillReturnError(&mysql.MySQLError{
		Number: 1062, Message: "Duplicate entry 'b1' for key 'invoices.uniq_invoices_booking_id'",
	})

	err = InvoiceRepository{DB: db}.Insert(context.Background(), sampleInvoice("i1", "INV-2026-000001", "b1"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func sampleReceipt(id, number, txID string) models.Receipt {
	return models.Receipt{
		ID: id, ReceiptNumber: number, BookingID: "b1", UserID: "u1", TransactionID: txID, InvoiceID: "i1",
		ReceiptDate: testNow, Amount: decimal.RequireFromString("500.00"), Currency: "USD",
		PaymentMethod: "Visa ending in 4242", PaymentReference: "TXN1",
		Subtotal: decimal.RequireFromString("500.00"), Taxes: decimal.RequireFromString("50.00"),
		Fees: decimal.RequireFromString("25.00"), Discount: decimal.Zero, TotalAmount: decimal.RequireFromString("575.00"),
		CreatedAt: testNow,
	}
}

func TestReceiptUniqueAndMarkEmailed(t *testing.T) {
	db := openTestDB(t)
	repo := ReceiptRepository{DB: db}
	ctx := context.Background()

	if err := repo.Insert(ctx, sampleReceipt("r1", "RCP-2026-000001", "t1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, sampleReceipt("r2", "RCP-2026-000002", "t1")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := repo.Insert(ctx, sampleReceipt("r3", "RCP-2026-000001", "t2")); !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("expected ErrDuplicateNumber, got %v", err)
	}

	changed, err := repo.MarkEmailed(ctx, "r1", testNow)
	if err != nil || !changed {
		t.Fatalf("mark emailed: %v %v", changed, err)
	}
	changed, _ = repo.MarkEmailed(ctx, "r1", testNow)
	if changed {
		t.Fatalf("second mark should be a no-op")
	}

	got, err := repo.FindByTransaction(ctx, "t1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.Emailed || got.EmailedAt == nil || got.PaymentMethod != "Visa ending in 4242" {
		t.Fatalf("unexpected receipt %+v", got)
	}

	list, _ := repo.ListByBooking(ctx, "b1")
	if len(list) != 1 {
		t.Fatalf("expected one receipt for booking, got %d", len(list))
	}
}

func TestAccountLookups(t *testing.T) {
	db := openTestDB(t)
	repo := AccountRepository{DB: db}
	ctx := context.Background()

	_ = repo.InsertUser(ctx, "u1", "Ada", "ada@example.com", testNow)
	_ = repo.InsertPaymentMethod(ctx, models.PaymentMethod{ID: "pm1", UserID: "u1", Type: models.MethodCreditCard, CardBrand: "Visa", CardLastFour: "4242"}, testNow)

	ok, err := repo.UserExists(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("user should exist: %v %v", ok, err)
	}
	ok, _ = repo.UserExists(ctx, "u2")
	if ok {
		t.Fatalf("u2 should not exist")
	}
	pm, err := repo.GetPaymentMethod(ctx, "pm1")
	if err != nil || pm.CardBrand != "Visa" {
		t.Fatalf("payment method: %+v %v", pm, err)
	}
	if _, err := repo.GetPaymentMethod(ctx, "pm2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
