package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	intdb "settlement/internal/db"
	"settlement/internal/domain/models"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
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
	return db
}

func seedBooking(t *testing.T, db *sql.DB, id, total string) models.Booking {
	t.Helper()
	b := models.Booking{
		ID: id, Reference: "BK-" + id, UserID: "u1", TotalAmount: decimal.RequireFromString(total),
		Currency: "USD", Status: models.BookingPending, CreatedAt: testNow, UpdatedAt: testNow,
	}
	if err := (BookingRepository{DB: db}).Insert(context.Background(), b); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func sampleCharge(id, number, bookingID, amount string) models.PaymentTransaction {
	processed := testNow
	return models.PaymentTransaction{
		ID: id, TransactionNumber: number, BookingID: bookingID, UserID: "u1",
		Type: models.TransactionBookingPayment, Status: models.TransactionCompleted,
		Amount: decimal.RequireFromString(amount), Currency: "USD", Gateway: "mock",
		GatewayReference: "mock_ch_" + id, GatewayResponse: `{"status":"succeeded"}`,
		ProcessedAt: &processed, RefundedAmount: decimal.Zero,
		CardBrand: "Visa", CardLastFour: "4242", PaymentMethodType: models.MethodCreditCard,
		CreatedAt: testNow, UpdatedAt: testNow,
	}
}
