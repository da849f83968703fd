package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is the reservation being settled. Fares are computed upstream;
// TotalAmount is taken as given.
type Booking struct {
	ID                 string          `json:"id"`
	Reference          string          `json:"reference"`
	UserID             string          `json:"user_id,omitempty"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Currency           string          `json:"currency"`
	Status             BookingStatus   `json:"status"`
	Version            int64           `json:"version"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (b Booking) IsPending() bool { return b.Status == BookingPending }
