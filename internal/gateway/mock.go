package gateway

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

const MockName = "mock"

type MockConfig struct {
	Latency           time.Duration
	ChargeFailureRate float64
	RefundFailureRate float64
	// Rand returns a value in [0, 1). Defaults to rand.Float64.
	Rand func() float64
}

// Mock simulates a provider with latency and random declines.
type Mock struct {
	cfg MockConfig
}

func NewMock(cfg MockConfig) *Mock {
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	return &Mock{cfg: cfg}
}

func (m *Mock) Name() string { return MockName }

func (m *Mock) Charge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	if err := m.wait(ctx); err != nil {
		return Outcome{}, err
	}
	if m.cfg.Rand() < m.cfg.ChargeFailureRate {
		return Failed("card declined by issuer"), nil
	}
	ref := "mock_ch_" + uuid.NewString()
	return Outcome{
		Success:           true,
		ProviderReference: ref,
		Message:           "approved",
		RawResponse: rawJSON(map[string]any{
			"id": ref, "status": "succeeded", "reference": req.Reference,
			"amount": req.Amount.StringFixed(2), "currency": req.Currency,
		}),
	}, nil
}

func (m *Mock) Refund(ctx context.Context, req RefundRequest) (Outcome, error) {
	if err := m.wait(ctx); err != nil {
		return Outcome{}, err
	}
	if m.cfg.Rand() < m.cfg.RefundFailureRate {
		return Failed("refund rejected by provider"), nil
	}
	ref := "mock_re_" + uuid.NewString()
	return Outcome{
		Success:           true,
		ProviderReference: ref,
		Message:           "refunded",
		RawResponse: rawJSON(map[string]any{
			"id": ref, "status": "succeeded", "charge": req.OriginalReference,
			"amount": req.Amount.StringFixed(2), "currency": req.Currency,
		}),
	}, nil
}

func (m *Mock) wait(ctx context.Context) error {
	if m.cfg.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.cfg.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AlwaysSucceed approves every request without delay.
type AlwaysSucceed struct{}

func (AlwaysSucceed) Name() string { return "always-succeed" }

func (AlwaysSucceed) Charge(_ context.Context, req ChargeRequest) (Outcome, error) {
	ref := "ok_ch_" + req.Reference
	return Outcome{Success: true, ProviderReference: ref, Message: "approved", RawResponse: rawJSON(map[string]any{"id": ref, "status": "succeeded"})}, nil
}

func (AlwaysSucceed) Refund(_ context.Context, req RefundRequest) (Outcome, error) {
	ref := "ok_re_" + req.Reference
	return Outcome{Success: true, ProviderReference: ref, Message: "refunded", RawResponse: rawJSON(map[string]any{"id": ref, "status": "succeeded"})}, nil
}

// AlwaysFail declines every request with Reason.
type AlwaysFail struct {
	Reason string
}

func (AlwaysFail) Name() string { return "always-fail" }

func (f AlwaysFail) Charge(context.Context, ChargeRequest) (Outcome, error) {
	return Failed(f.reason()), nil
}

func (f AlwaysFail) Refund(context.Context, RefundRequest) (Outcome, error) {
	return Failed(f.reason()), nil
}

func (f AlwaysFail) reason() string {
	if f.Reason == "" {
		return "declined"
	}
	return f.Reason
}

// Hang never answers; it returns only when ctx is done.
type Hang struct{}

func (Hang) Name() string { return "timeout" }

func (Hang) Charge(ctx context.Context, _ ChargeRequest) (Outcome, error) {
	<-ctx.Done()
	return Outcome{}, ctx.Err()
}

func (Hang) Refund(ctx context.Context, _ RefundRequest) (Outcome, error) {
	<-ctx.Done()
	return Outcome{}, ctx.Err()
}
