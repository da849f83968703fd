package gateway

import (
	"context"
	"time"
)

const TimeoutMessage = "gateway timeout"

type timeoutGateway struct {
	inner   Gateway
	timeout time.Duration
}

// WithTimeout bounds every call to inner. A call still running at the deadline
// yields a failed outcome even if inner ignores its context. A non-positive
// timeout returns inner unchanged.
func WithTimeout(inner Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		return inner
	}
	return &timeoutGateway{inner: inner, timeout: timeout}
}

func (g *timeoutGateway) Name() string { return g.inner.Name() }

func (g *timeoutGateway) Charge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	return g.run(ctx, func(ctx context.Context) (Outcome, error) { return g.inner.Charge(ctx, req) })
}

func (g *timeoutGateway) Refund(ctx context.Context, req RefundRequest) (Outcome, error) {
	return g.run(ctx, func(ctx context.Context) (Outcome, error) { return g.inner.Refund(ctx, req) })
}

type result struct {
	out Outcome
	err error
}

func (g *timeoutGateway) run(ctx context.Context, call func(context.Context) (Outcome, error)) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		out, err := call(ctx)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == context.DeadlineExceeded {
			return Failed(TimeoutMessage), nil
		}
		return r.out, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Failed(TimeoutMessage), nil
		}
		return Outcome{}, ctx.Err()
	}
}
