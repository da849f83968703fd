package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountsMarshalWithTwoPlaces(t *testing.T) {
	inv := Invoice{
		InvoiceNumber: "INV-2026-000001",
		Subtotal:      decimal.RequireFromString("500"),
		Taxes:         decimal.RequireFromString("50"),
		Fees:          decimal.RequireFromString("25"),
		Discount:      decimal.Zero,
		TotalAmount:   decimal.RequireFromString("575"),
		TaxBreakdown:  []TaxLine{{Name: "tax", Rate: decimal.RequireFromString("0.1"), Amount: decimal.RequireFromString("50")}},
	}
	b, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("marshal invoice: %v", err)
	}
	for _, want := range []string{`"subtotal":"500.00"`, `"total_amount":"575.00"`, `"discount":"0.00"`, `"rate":"0.10"`, `"amount":"50.00"`, `"invoice_number":"INV-2026-000001"`} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("missing %s in %s", want, b)
		}
	}

	var back Invoice
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal invoice: %v", err)
	}
	if !back.TotalAmount.Equal(inv.TotalAmount) || back.InvoiceNumber != inv.InvoiceNumber {
		t.Fatalf("unexpected decode %+v", back)
	}
}

func TestTransactionJSONKeepsOtherFields(t *testing.T) {
	txn := PaymentTransaction{
		TransactionNumber: "TXN1",
		Status:            TransactionPartiallyRefunded,
		Amount:            decimal.RequireFromString("500"),
		RefundedAmount:    decimal.RequireFromString("200.5"),
		GatewayResponse:   `{"secret":true}`,
	}
	b, err := json.Marshal(&txn)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"amount":"500.00"`) || !strings.Contains(s, `"refunded_amount":"200.50"`) {
		t.Fatalf("amounts not fixed: %s", s)
	}
	if !strings.Contains(s, `"status":"PARTIALLY_REFUNDED"`) || strings.Contains(s, "secret") {
		t.Fatalf("unexpected payload %s", s)
	}

	rc, err := json.Marshal(Receipt{Amount: decimal.RequireFromString("12.3")})
	if err != nil || !strings.Contains(string(rc), `"amount":"12.30"`) {
		t.Fatalf("receipt amount: %s %v", rc, err)
	}
	bk, err := json.Marshal(Booking{TotalAmount: decimal.RequireFromString("99.9")})
	if err != nil || !strings.Contains(string(bk), `"total_amount":"99.90"`) {
		t.Fatalf("booking total: %s %v", bk, err)
	}
}
