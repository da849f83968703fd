// Package gateway holds the payment provider adapters. A provider decline is a
// failed Outcome, not an error; errors are reserved for transport problems.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"settlement/internal/domain/models"
)

type ChargeRequest struct {
	// Reference is the ledger transaction number. Providers use it as the
	// idempotency key.
	Reference         string
	BookingID         string
	Amount            decimal.Decimal
	Currency          string
	PaymentMethodType models.PaymentMethodType
	ProviderToken     string
	CustomerID        string
	Description       string
}

type RefundRequest struct {
	Reference         string
	OriginalReference string
	Amount            decimal.Decimal
	Currency          string
	Reason            string
}

type Outcome struct {
	Success           bool
	ProviderReference string
	Message           string
	RawResponse       string
}

type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (Outcome, error)
	Refund(ctx context.Context, req RefundRequest) (Outcome, error)
}

// Failed builds a declined outcome with a JSON body describing the reason.
func Failed(message string) Outcome {
	return Outcome{Success: false, Message: message, RawResponse: rawJSON(map[string]any{"success": false, "message": message})}
}

func rawJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
