// Package events publishes settlement facts for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	PaymentCompleted Type = "payment.completed"
	PaymentFailed    Type = "payment.failed"
	RefundCompleted  Type = "refund.completed"
	RefundFailed     Type = "refund.failed"
	BookingConfirmed Type = "booking.confirmed"
	BookingCancelled Type = "booking.cancelled"
)

type Event struct {
	ID                string          `json:"id"`
	Type              Type            `json:"type"`
	BookingID         string          `json:"booking_id"`
	TransactionID     string          `json:"transaction_id,omitempty"`
	TransactionNumber string          `json:"transaction_number,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	OccurredAt        time.Time       `json:"occurred_at"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		Amount string `json:"amount"`
	}{plain(e), e.Amount.StringFixed(2)})
}

// Publisher delivers events keyed by booking id so one booking's events stay
// ordered on a partition.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

func (NopPublisher) Close() error { return nil }
