package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Amounts leave the service as fixed point strings with two fraction digits.
// Decoding stays on decimal's own UnmarshalJSON, which accepts that form.

func fixed(d decimal.Decimal) string { return d.StringFixed(2) }

func (b Booking) MarshalJSON() ([]byte, error) {
	type plain Booking
	return json.Marshal(struct {
		plain
		TotalAmount string `json:"total_amount"`
	}{plain(b), fixed(b.TotalAmount)})
}

func (t PaymentTransaction) MarshalJSON() ([]byte, error) {
	type plain PaymentTransaction
	return json.Marshal(struct {
		plain
		Amount         string `json:"amount"`
		RefundedAmount string `json:"refunded_amount"`
	}{plain(t), fixed(t.Amount), fixed(t.RefundedAmount)})
}

func (l TaxLine) MarshalJSON() ([]byte, error) {
	type plain TaxLine
	return json.Marshal(struct {
		plain
		Rate   string `json:"rate"`
		Amount string `json:"amount"`
	}{plain(l), fixed(l.Rate), fixed(l.Amount)})
}

func (inv Invoice) MarshalJSON() ([]byte, error) {
	type plain Invoice
	return json.Marshal(struct {
		plain
		Subtotal    string `json:"subtotal"`
		Taxes       string `json:"taxes"`
		Fees        string `json:"fees"`
		Discount    string `json:"discount"`
		TotalAmount string `json:"total_amount"`
	}{plain(inv), fixed(inv.Subtotal), fixed(inv.Taxes), fixed(inv.Fees), fixed(inv.Discount), fixed(inv.TotalAmount)})
}

func (rc Receipt) MarshalJSON() ([]byte, error) {
	type plain Receipt
	return json.Marshal(struct {
		plain
		Amount      string `json:"amount"`
		Subtotal    string `json:"subtotal"`
		Taxes       string `json:"taxes"`
		Fees        string `json:"fees"`
		Discount    string `json:"discount"`
		TotalAmount string `json:"total_amount"`
	}{plain(rc), fixed(rc.Amount), fixed(rc.Subtotal), fixed(rc.Taxes), fixed(rc.Fees), fixed(rc.Discount), fixed(rc.TotalAmount)})
}
