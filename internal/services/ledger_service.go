package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/gateway"
	"settlement/internal/repositories"
	"settlement/internal/utils"
)

type TransactionStore interface {
	Insert(ctx context.Context, t models.PaymentTransaction) error
	FindByID(ctx context.Context, id string) (models.PaymentTransaction, error)
	FindByNumber(ctx context.Context, number string) (models.PaymentTransaction, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	Search(ctx context.Context, f models.TransactionFilter, p domain.Pagination) ([]models.PaymentTransaction, int, error)
	ApplyRefund(ctx context.Context, id string, amount decimal.Decimal, reason string, at time.Time) error
}

// LedgerService owns PaymentTransaction rows. Every attempt is recorded,
// declined ones included.
type LedgerService struct {
	Store TransactionStore
	IDs   IdentifierService
	Now   utils.Clock
	NewID func() string
}

func (s LedgerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s LedgerService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// ReserveNumber picks an unused transaction or refund number.
func (s LedgerService) ReserveNumber(ctx context.Context, kind IdentifierKind) (Reservation, error) {
	return s.IDs.Reserve(ctx, kind, s.Store.NumberExists)
}

// ChargeRecord describes one charge attempt against a booking.
type ChargeRecord struct {
	Reservation
	Booking           models.Booking
	UserID            string
	PaymentMethodID   string
	PaymentMethodType models.PaymentMethodType
	CardBrand         string
	CardLastFour      string
	Currency          string
	Gateway           string
	Outcome           gateway.Outcome
	// FailureReason overrides the gateway message on a declined row.
	FailureReason string
}

func (s LedgerService) RecordCharge(ctx context.Context, rec ChargeRecord) (models.PaymentTransaction, error) {
	now := s.now()
	t := models.PaymentTransaction{
		ID:                s.newID(),
		BookingID:         rec.Booking.ID,
		UserID:            rec.UserID,
		PaymentMethodID:   rec.PaymentMethodID,
		Type:              models.TransactionBookingPayment,
		Amount:            utils.RoundMoney(rec.Booking.TotalAmount),
		Currency:          rec.Currency,
		Gateway:           rec.Gateway,
		GatewayReference:  rec.Outcome.ProviderReference,
		GatewayResponse:   rec.Outcome.RawResponse,
		ProcessedAt:       &now,
		RefundedAmount:    decimal.Zero,
		CardBrand:         rec.CardBrand,
		CardLastFour:      rec.CardLastFour,
		PaymentMethodType: rec.PaymentMethodType,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	applyOutcome(&t, rec.Outcome, rec.FailureReason)
	return s.persist(ctx, KindTransaction, rec.Reservation, t)
}

// RecordRefund stores the refund attempt as its own row. A refund of the whole
// charge is REFUND, anything less PARTIAL_REFUND.
func (s LedgerService) RecordRefund(ctx context.Context, number Reservation, original models.PaymentTransaction, amount decimal.Decimal, outcome gateway.Outcome, gatewayName, reason, failureReason string) (models.PaymentTransaction, error) {
	now := s.now()
	kind := models.TransactionPartialRefund
	if amount.Equal(original.Amount) {
		kind = models.TransactionRefund
	}
	t := models.PaymentTransaction{
		ID:                    s.newID(),
		BookingID:             original.BookingID,
		UserID:                original.UserID,
		PaymentMethodID:       original.PaymentMethodID,
		OriginalTransactionID: original.ID,
		Type:                  kind,
		Amount:                utils.RoundMoney(amount),
		Currency:              original.Currency,
		Gateway:               gatewayName,
		GatewayReference:      outcome.ProviderReference,
		GatewayResponse:       outcome.RawResponse,
		ProcessedAt:           &now,
		RefundedAmount:        decimal.Zero,
		RefundReason:          reason,
		CardBrand:             original.CardBrand,
		CardLastFour:          original.CardLastFour,
		PaymentMethodType:     original.PaymentMethodType,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	applyOutcome(&t, outcome, failureReason)
	return s.persist(ctx, KindRefund, number, t)
}

func applyOutcome(t *models.PaymentTransaction, out gateway.Outcome, failureReason string) {
	if out.Success && failureReason == "" {
		t.Status = models.TransactionCompleted
		return
	}
	t.Status = models.TransactionFailed
	t.FailureReason = firstNonEmpty(failureReason, out.Message, "declined")
}

func (s LedgerService) persist(ctx context.Context, kind IdentifierKind, number Reservation, t models.PaymentTransaction) (models.PaymentTransaction, error) {
	stored, err := s.IDs.Persist(ctx, kind, number, s.Store.NumberExists, func(ctx context.Context, n string) error {
		t.TransactionNumber = n
		return s.Store.Insert(ctx, t)
	})
	if err != nil {
		return models.PaymentTransaction{}, err
	}
	t.TransactionNumber = stored
	return t, nil
}

// ValidateRefund checks that original can absorb amount.
func (s LedgerService) ValidateRefund(original models.PaymentTransaction, amount decimal.Decimal) error {
	if !original.IsRefundable() {
		return domain.ValidationError{Field: "transaction_id", Msg: "transaction is " + string(original.Status) + " and cannot be refunded"}
	}
	if amount.Sign() <= 0 {
		return domain.ValidationError{Field: "amount", Msg: "refund amount must be greater than zero"}
	}
	if !utils.HasMoneyScale(amount) {
		return domain.ValidationError{Field: "amount", Msg: "refund amount must have at most two decimal places"}
	}
	if remaining := original.RemainingRefundable(); amount.GreaterThan(remaining) {
		return domain.ValidationError{Field: "amount", Msg: "refund amount " + utils.FormatMoney(amount) + " exceeds remaining " + utils.FormatMoney(remaining)}
	}
	return nil
}

// ApplyRefund accumulates amount on original in the store and returns the
// updated row.
func (s LedgerService) ApplyRefund(ctx context.Context, original models.PaymentTransaction, amount decimal.Decimal, reason string) (models.PaymentTransaction, error) {
	if err := s.ValidateRefund(original, amount); err != nil {
		return models.PaymentTransaction{}, err
	}
	if err := s.Store.ApplyRefund(ctx, original.ID, amount, reason, s.now()); err != nil {
		if errors.Is(err, repositories.ErrNotRefundable) {
			return models.PaymentTransaction{}, domain.ValidationError{Field: "amount", Msg: "refund exceeds the remaining refundable amount", Err: err}
		}
		return models.PaymentTransaction{}, err
	}
	return s.FindByID(ctx, original.ID)
}

func (s LedgerService) FindByID(ctx context.Context, id string) (models.PaymentTransaction, error) {
	t, err := s.Store.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.PaymentTransaction{}, domain.NotFoundError{Resource: "transaction", ID: id, Err: err}
	}
	return t, err
}

// Get resolves a transaction by id, then by transaction number.
func (s LedgerService) Get(ctx context.Context, ref string) (models.PaymentTransaction, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.PaymentTransaction{}, domain.ValidationError{Field: "id", Msg: "transaction id or number is required"}
	}
	t, err := s.Store.FindByID(ctx, ref)
	if errors.Is(err, repositories.ErrNotFound) {
		t, err = s.Store.FindByNumber(ctx, ref)
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return models.PaymentTransaction{}, domain.NotFoundError{Resource: "transaction", ID: ref, Err: err}
	}
	return t, err
}

func (s LedgerService) Search(ctx context.Context, f models.TransactionFilter, p domain.Pagination) (domain.Page[models.PaymentTransaction], error) {
	p = p.Normalize()
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return domain.Page[models.PaymentTransaction]{}, domain.ValidationError{Field: "from", Msg: "from must not be after to"}
	}
	items, total, err := s.Store.Search(ctx, f, p)
	if err != nil {
		return domain.Page[models.PaymentTransaction]{}, err
	}
	return domain.Page[models.PaymentTransaction]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
