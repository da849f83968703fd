package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
)

func TestTransactionInsertAndFind(t *testing.T) {
	db := openTestDB(t)
	repo := TransactionRepository{DB: db}
	ctx := context.Background()

	tx := sampleCharge("t1", "TXN17000000000001234", "b1", "500.00")
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.FindByNumber(ctx, "TXN17000000000001234")
	if err != nil {
		t.Fatalf("find by number: %v", err)
	}
	if got.ID != "t1" || got.Amount.StringFixed(2) != "500.00" || got.GatewayResponse != `{"status":"succeeded"}` {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(testNow) {
		t.Fatalf("processed_at lost: %v", got.ProcessedAt)
	}

	exists, err := repo.NumberExists(ctx, tx.TransactionNumber)
	if err != nil || !exists {
		t.Fatalf("number should exist: %v %v", exists, err)
	}
	if _, err := repo.FindByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionInsertDuplicateNumber(t *testing.T) {
	db := openTestDB(t)
	repo := TransactionRepository{DB: db}
	ctx := context.Background()

	if err := repo.Insert(ctx, sampleCharge("t1", "TXN1", "b1", "10.00")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, sampleCharge("t2", "TXN1", "b1", "10.00")); !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("expected ErrDuplicateNumber, got %v", err)
	}
}

func TestTransactionInsertDuplicateNumberMySQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO payment_transactions").WillReturnError(&mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'TXN1' for key 'payment_transactions.uniq_payment_transactions_transaction_number'",
	})

	err = TransactionRepository{DB: db}.Insert(context.Background(), sampleCharge("t1", "TXN1", "b1", "10.00"))
	if !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("expected ErrDuplicateNumber, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyRefundAccumulates(t *testing.T) {
	db := openTestDB(t)
	repo := TransactionRepository{DB: db}
	ctx := context.Background()
	_ = repo.Insert(ctx, sampleCharge("t1", "TXN1", "b1", "500.00"))

	if err := repo.ApplyRefund(ctx, "t1", decimal.RequireFromString("200.00"), "changed plans", testNow); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	got, _ := repo.FindByID(ctx, "t1")
	if got.Status != models.TransactionPartiallyRefunded || got.RefundedAmount.StringFixed(2) != "200.00" {
		t.Fatalf("after partial: %s %s", got.Status, got.RefundedAmount)
	}

	if err := repo.ApplyRefund(ctx, "t1", decimal.RequireFromString("300.01"), "", testNow); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("over-refund should be rejected, got %v", err)
	}

	if err := repo.ApplyRefund(ctx, "t1", decimal.RequireFromString("300.00"), "rest", testNow); err != nil {
		t.Fatalf("second refund: %v", err)
	}
	got, _ = repo.FindByID(ctx, "t1")
	if got.Status != models.TransactionRefunded || got.RefundedAmount.StringFixed(2) != "500.00" || got.RefundReason != "rest" {
		t.Fatalf("after full: %+v", got)
	}

	if err := repo.ApplyRefund(ctx, "t1", decimal.RequireFromString("0.01"), "", testNow); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("refunded row must not take more, got %v", err)
	}
}

func TestApplyRefundRejectsFailedCharge(t *testing.T) {
	db := openTestDB(t)
	repo := TransactionRepository{DB: db}
	ctx := context.Background()
	tx := sampleCharge("t1", "TXN1", "b1", "50.00")
	tx.Status = models.TransactionFailed
	_ = repo.Insert(ctx, tx)

	if err := repo.ApplyRefund(ctx, "t1", decimal.RequireFromString("10.00"), "", testNow); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("expected ErrNotRefundable, got %v", err)
	}
}

func TestSearchFiltersAndPages(t *testing.T) {
	db := openTestDB(t)
	repo := TransactionRepository{DB: db}
	ctx := context.Background()

	for i, n := range []string{"TXN1", "TXN2", "TXN3"} {
		tx := sampleCharge("t"+n, n, "b1", "10.00")
		tx.CreatedAt = testNow.Add(time.Duration(i) * time.Minute)
		_ = repo.Insert(ctx, tx)
	}
	other := sampleCharge("tx-other", "TXN9", "b2", "10.00")
	other.Status = models.TransactionFailed
	_ = repo.Insert(ctx, other)

	items, total, err := repo.Search(ctx, models.TransactionFilter{BookingID: "b1"}, domain.Pagination{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d len=%d", total, len(items))
	}
	if items[0].TransactionNumber != "TXN3" || items[1].TransactionNumber != "TXN2" {
		t.Fatalf("expected newest first, got %s %s", items[0].TransactionNumber, items[1].TransactionNumber)
	}

	items, _, _ = repo.Search(ctx, models.TransactionFilter{BookingID: "b1"}, domain.Pagination{Page: 2, Limit: 2})
	if len(items) != 1 || items[0].TransactionNumber != "TXN1" {
		t.Fatalf("unexpected second page %+v", items)
	}

	from := testNow.Add(90 * time.Second)
	items, total, _ = repo.Search(ctx, models.TransactionFilter{From: &from}, domain.Pagination{})
	if total != 1 || items[0].TransactionNumber != "TXN3" {
		t.Fatalf("from filter: total=%d", total)
	}

	_, total, _ = repo.Search(ctx, models.TransactionFilter{Status: models.TransactionFailed}, domain.Pagination{})
	if total != 1 {
		t.Fatalf("status filter: total=%d", total)
	}
}

func TestSearchBreaksTiesByInsertOrder(t *testing.T) {
	db := openTestDB(t)
	repo := TransactionRepository{DB: db}
	ctx := context.Background()

	charge := sampleCharge("t1", "TXN17000000000009999", "b1", "500.00")
	refund := sampleCharge("t2", "REF-TXN17000000000000001", "b1", "5.00")
	refund.Type = models.TransactionPartialRefund
	refund.OriginalTransactionID = "t1"
	for _, tx := range []models.PaymentTransaction{charge, refund} {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("insert %s: %v", tx.TransactionNumber, err)
		}
	}

	items, _, err := repo.Search(ctx, models.TransactionFilter{BookingID: "b1"}, domain.Pagination{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 || items[0].ID != "t2" || items[1].ID != "t1" {
		t.Fatalf("expected refund before charge, got %+v", items)
	}
}
