package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"settlement/internal/domain/models"
	"settlement/internal/repositories"
)

type memReceipts struct {
	items   []models.Receipt
	emailed map[string]bool
}

func (m *memReceipts) Insert(_ context.Context, rc models.Receipt) error {
	for _, v := range m.items {
		if v.TransactionID == rc.TransactionID {
			return repositories.ErrAlreadyExists
		}
		if v.ReceiptNumber == rc.ReceiptNumber {
			return repositories.ErrDuplicateNumber
		}
	}
	m.items = append(m.items, rc)
	return nil
}

func (m *memReceipts) find(match func(models.Receipt) bool) (models.Receipt, error) {
	for _, v := range m.items {
		if match(v) {
			return v, nil
		}
	}
	return models.Receipt{}, repositories.ErrNotFound
}

func (m *memReceipts) FindByID(_ context.Context, id string) (models.Receipt, error) {
	return m.find(func(v models.Receipt) bool { return v.ID == id })
}

func (m *memReceipts) FindByNumber(_ context.Context, n string) (models.Receipt, error) {
	return m.find(func(v models.Receipt) bool { return v.ReceiptNumber == n })
}

func (m *memReceipts) FindByTransaction(_ context.Context, id string) (models.Receipt, error) {
	return m.find(func(v models.Receipt) bool { return v.TransactionID == id })
}

func (m *memReceipts) ListByBooking(_ context.Context, id string) ([]models.Receipt, error) {
	var out []models.Receipt
	for _, v := range m.items {
		if v.BookingID == id {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memReceipts) NumberExists(_ context.Context, n string) (bool, error) {
	_, err := m.FindByNumber(context.Background(), n)
	return err == nil, nil
}

func (m *memReceipts) MarkEmailed(_ context.Context, id string, _ time.Time) (bool, error) {
	if m.emailed == nil {
		m.emailed = map[string]bool{}
	}
	if m.emailed[id] {
		return false, nil
	}
	m.emailed[id] = true
	return true, nil
}

func TestPaymentMethodDisplay(t *testing.T) {
	cases := []struct {
		txn  models.PaymentTransaction
		want string
	}{
		{models.PaymentTransaction{CardBrand: "Visa", CardLastFour: "4242"}, "Visa ending in 4242"},
		{models.PaymentTransaction{CardBrand: "Visa"}, "Payment"},
		{models.PaymentTransaction{PaymentMethodType: models.MethodPayPal}, "PayPal"},
		{models.PaymentTransaction{PaymentMethodType: models.MethodBankTransfer, CardLastFour: "1111"}, "Bank Transfer"},
		{models.PaymentTransaction{PaymentMethodType: "CRYPTO"}, "Payment"},
	}
	for _, tc := range cases {
		if got := PaymentMethodDisplay(tc.txn); got != tc.want {
			t.Fatalf("PaymentMethodDisplay(%+v) = %q, want %q", tc.txn, got, tc.want)
		}
	}
}

func TestReceiptCopiesInvoiceFigures(t *testing.T) {
	store := &memReceipts{}
	svc := ReceiptService{Store: store, Now: func() time.Time { return testNow }}
	inv := models.Invoice{
		ID: "inv1", Currency: "USD",
		Subtotal: decimal.RequireFromString("500.00"), Taxes: decimal.RequireFromString("50.00"),
		Fees: decimal.RequireFromString("25.00"), TotalAmount: decimal.RequireFromString("575.00"),
	}
	txn := models.PaymentTransaction{ID: "t1", TransactionNumber: "TXN1", Amount: decimal.RequireFromString("500.00"), Currency: "USD"}

	rc, err := svc.Generate(context.Background(), models.Booking{ID: "b1"}, txn, inv)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !rc.TotalAmount.Equal(inv.TotalAmount) || !rc.Taxes.Equal(inv.Taxes) || !rc.Amount.Equal(txn.Amount) {
		t.Fatalf("figures not copied: %+v", rc)
	}
	if rc.PaymentReference != "TXN1" || rc.PaymentMethod != "Payment" || rc.InvoiceID != "inv1" {
		t.Fatalf("unexpected receipt %+v", rc)
	}
	if !strings.HasPrefix(rc.ReceiptNumber, "RCP-") {
		t.Fatalf("receipt number %q", rc.ReceiptNumber)
	}

	again, err := svc.Generate(context.Background(), models.Booking{ID: "b1"}, txn, inv)
	if err != nil || again.ID != rc.ID || len(store.items) != 1 {
		t.Fatalf("second generate should reuse the receipt, err=%v items=%d", err, len(store.items))
	}
}

func TestReceiptMarkEmailedOnce(t *testing.T) {
	store := &memReceipts{}
	svc := ReceiptService{Store: store}
	if ok, _ := svc.MarkEmailed(context.Background(), "r1"); !ok {
		t.Fatalf("first mark should succeed")
	}
	if ok, _ := svc.MarkEmailed(context.Background(), "r1"); ok {
		t.Fatalf("second mark should report already emailed")
	}
}
