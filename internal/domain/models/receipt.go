package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt attests to an invoice's figures for one transaction. It never
// recomputes them.
type Receipt struct {
	ID               string          `json:"id"`
	ReceiptNumber    string          `json:"receipt_number"`
	BookingID        string          `json:"booking_id"`
	UserID           string          `json:"user_id,omitempty"`
	TransactionID    string          `json:"transaction_id"`
	InvoiceID        string          `json:"invoice_id"`
	ReceiptDate      time.Time       `json:"receipt_date"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Taxes            decimal.Decimal `json:"taxes"`
	Fees             decimal.Decimal `json:"fees"`
	Discount         decimal.Decimal `json:"discount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Emailed          bool            `json:"emailed"`
	EmailedAt        *time.Time      `json:"emailed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
