package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionBookingPayment TransactionType = "BOOKING_PAYMENT"
	TransactionRefund         TransactionType = "REFUND"
	TransactionPartialRefund  TransactionType = "PARTIAL_REFUND"
)

type TransactionStatus string

const (
	TransactionPending           TransactionStatus = "PENDING"
	TransactionCompleted         TransactionStatus = "COMPLETED"
	TransactionFailed            TransactionStatus = "FAILED"
	TransactionPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
	TransactionRefunded          TransactionStatus = "REFUNDED"
)

// PaymentTransaction is one ledger row: a charge attempt or a refund attempt.
// Rows are immutable once COMPLETED or FAILED, except for the refund fields
// of a charge.
type PaymentTransaction struct {
	ID                    string            `json:"id"`
	TransactionNumber     string            `json:"transaction_number"`
	BookingID             string            `json:"booking_id"`
	UserID                string            `json:"user_id,omitempty"`
	PaymentMethodID       string            `json:"payment_method_id,omitempty"`
	OriginalTransactionID string            `json:"original_transaction_id,omitempty"`
	Type                  TransactionType   `json:"type"`
	Status                TransactionStatus `json:"status"`
	Amount                decimal.Decimal   `json:"amount"`
	Currency              string            `json:"currency"`
	Gateway               string            `json:"gateway"`
	GatewayReference      string            `json:"gateway_reference,omitempty"`
	GatewayResponse       string            `json:"-"`
	FailureReason         string            `json:"failure_reason,omitempty"`
	ProcessedAt           *time.Time        `json:"processed_at,omitempty"`
	RefundedAmount        decimal.Decimal   `json:"refunded_amount"`
	RefundReason          string            `json:"refund_reason,omitempty"`
	RefundedAt            *time.Time        `json:"refunded_at,omitempty"`
	CardLastFour          string            `json:"card_last_four,omitempty"`
	CardBrand             string            `json:"card_brand,omitempty"`
	PaymentMethodType     PaymentMethodType `json:"payment_method_type,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// RemainingRefundable is the part of the charge not yet returned.
func (t PaymentTransaction) RemainingRefundable() decimal.Decimal {
	return t.Amount.Sub(t.RefundedAmount)
}

// IsRefundable reports whether the row is a charge that can still take a refund.
func (t PaymentTransaction) IsRefundable() bool {
	if t.Type != TransactionBookingPayment {
		return false
	}
	return t.Status == TransactionCompleted || t.Status == TransactionPartiallyRefunded
}

// StatusForRefunded derives a charge status from its amount and refunded total.
// REFUNDED iff refunded == amount, PARTIALLY_REFUNDED iff 0 < refunded < amount.
func StatusForRefunded(amount, refunded decimal.Decimal) TransactionStatus {
	switch {
	case refunded.Sign() <= 0:
		return TransactionCompleted
	case refunded.GreaterThanOrEqual(amount):
		return TransactionRefunded
	default:
		return TransactionPartiallyRefunded
	}
}

// ApplyRefund adds amount to the refunded total and recomputes the status.
func (t *PaymentTransaction) ApplyRefund(amount decimal.Decimal, reason string, at time.Time) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("refund amount must be positive")
	}
	next := t.RefundedAmount.Add(amount)
	if next.GreaterThan(t.Amount) {
		return fmt.Errorf("refund of %s exceeds remaining %s", amount.StringFixed(2), t.RemainingRefundable().StringFixed(2))
	}
	t.RefundedAmount = next
	t.Status = StatusForRefunded(t.Amount, next)
	t.RefundReason = reason
	ts := at
	t.RefundedAt = &ts
	t.UpdatedAt = at
	return nil
}

// TransactionFilter narrows ledger searches. Zero values are ignored.
type TransactionFilter struct {
	BookingID string
	UserID    string
	Status    TransactionStatus
	Type      TransactionType
	From      *time.Time
	To        *time.Time
}
