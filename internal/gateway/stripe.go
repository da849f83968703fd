package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"settlement/internal/utils"
)

const StripeName = "stripe"

type paymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type refunds interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// Stripe charges saved payment methods off-session through PaymentIntents.
type Stripe struct {
	intents paymentIntents
	refunds refunds
}

func NewStripe(apiKey string) *Stripe {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &Stripe{intents: sc.PaymentIntents, refunds: sc.Refunds}
}

func (s *Stripe) Name() string { return StripeName }

func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	if req.ProviderToken == "" {
		return Failed("no stripe payment method on file"), nil
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(utils.ToCents(req.Amount)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.ProviderToken),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		Description:   stripe.String(req.Description),
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	params.AddMetadata("booking_id", req.BookingID)
	params.AddMetadata("transaction_number", req.Reference)
	params.IdempotencyKey = stripe.String(req.Reference)
	params.Context = ctx

	pi, err := s.intents.New(params)
	if err != nil {
		return mapStripeError(err)
	}

	out := Outcome{ProviderReference: pi.ID, RawResponse: raw(pi.LastResponse)}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		out.Message = fmt.Sprintf("payment intent status %s", pi.Status)
		return out, nil
	}
	out.Success = true
	out.Message = "succeeded"
	return out, nil
}

func (s *Stripe) Refund(ctx context.Context, req RefundRequest) (Outcome, error) {
	if req.OriginalReference == "" {
		return Failed("charge has no provider reference"), nil
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.OriginalReference),
		Amount:        stripe.Int64(utils.ToCents(req.Amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.AddMetadata("refund_number", req.Reference)
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	params.IdempotencyKey = stripe.String(req.Reference)
	params.Context = ctx

	rf, err := s.refunds.New(params)
	if err != nil {
		return mapStripeError(err)
	}

	out := Outcome{ProviderReference: rf.ID, RawResponse: raw(rf.LastResponse)}
	switch rf.Status {
	case stripe.RefundStatusSucceeded, stripe.RefundStatusPending:
		out.Success = true
		out.Message = string(rf.Status)
	default:
		out.Message = fmt.Sprintf("refund status %s", rf.Status)
	}
	return out, nil
}

// mapStripeError turns card errors into declined outcomes. Provider outages
// and transport errors stay errors.
func mapStripeError(err error) (Outcome, error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined:
			return Failed("card was declined: " + stripeErr.Msg), nil
		case stripe.ErrorCodeExpiredCard:
			return Failed("card has expired"), nil
		case stripe.ErrorCodeBalanceInsufficient:
			return Failed("insufficient funds"), nil
		case stripe.ErrorCodeChargeAlreadyRefunded:
			return Failed("charge already refunded"), nil
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return Outcome{}, fmt.Errorf("stripe unavailable: %w", err)
		}
		if stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return Failed(stripeErr.Msg), nil
		}
	}
	return Outcome{}, fmt.Errorf("stripe: %w", err)
}

func raw(resp *stripe.APIResponse) string {
	if resp == nil {
		return ""
	}
	return string(resp.RawJSON)
}
