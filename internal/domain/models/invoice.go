package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const InvoicePaid InvoiceStatus = "PAID"

// TaxLine is one row of the audit breakdown printed on invoices.
type TaxLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type Invoice struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	BookingID     string          `json:"booking_id"`
	UserID        string          `json:"user_id,omitempty"`
	TransactionID string          `json:"transaction_id"`
	Status        InvoiceStatus   `json:"status"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Taxes         decimal.Decimal `json:"taxes"`
	Fees          decimal.Decimal `json:"fees"`
	Discount      decimal.Decimal `json:"discount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Billing       BillingInfo     `json:"billing"`
	TaxBreakdown  []TaxLine       `json:"tax_breakdown"`
	CreatedAt     time.Time       `json:"created_at"`
}
