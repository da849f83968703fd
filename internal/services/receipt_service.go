package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/repositories"
	"settlement/internal/utils"
)

type ReceiptStore interface {
	Insert(ctx context.Context, rc models.Receipt) error
	FindByID(ctx context.Context, id string) (models.Receipt, error)
	FindByNumber(ctx context.Context, number string) (models.Receipt, error)
	FindByTransaction(ctx context.Context, transactionID string) (models.Receipt, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Receipt, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	MarkEmailed(ctx context.Context, id string, at time.Time) (bool, error)
}

type ReceiptService struct {
	Store     ReceiptStore
	IDs       IdentifierService
	Now       utils.Clock
	NewID     func() string
	RequestID string
}

// PaymentMethodDisplay renders how the payment appears on a receipt.
func PaymentMethodDisplay(txn models.PaymentTransaction) string {
	if txn.CardBrand != "" && txn.CardLastFour != "" {
		return fmt.Sprintf("%s ending in %s", txn.CardBrand, txn.CardLastFour)
	}
	if label, ok := txn.PaymentMethodType.Label(); ok {
		return label
	}
	return "Payment"
}

// Generate returns the transaction's receipt, creating it on first call. All
// figures come from the invoice.
func (s ReceiptService) Generate(ctx context.Context, booking models.Booking, txn models.PaymentTransaction, inv models.Invoice) (models.Receipt, error) {
	existing, err := s.Store.FindByTransaction(ctx, txn.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.Receipt{}, err
	}

	now := s.now()
	rc := models.Receipt{
		ID:               s.newID(),
		BookingID:        booking.ID,
		UserID:           firstNonEmpty(txn.UserID, inv.UserID, booking.UserID),
		TransactionID:    txn.ID,
		InvoiceID:        inv.ID,
		ReceiptDate:      now,
		Amount:           txn.Amount,
		Currency:         firstNonEmpty(txn.Currency, inv.Currency),
		PaymentMethod:    PaymentMethodDisplay(txn),
		PaymentReference: firstNonEmpty(txn.GatewayReference, txn.TransactionNumber),
		Subtotal:         inv.Subtotal,
		Taxes:            inv.Taxes,
		Fees:             inv.Fees,
		Discount:         inv.Discount,
		TotalAmount:      inv.TotalAmount,
		CreatedAt:        now,
	}

	number, err := s.IDs.Persist(ctx, KindReceipt, Reservation{}, s.Store.NumberExists, func(ctx context.Context, n string) error {
		rc.ReceiptNumber = n
		return s.Store.Insert(ctx, rc)
	})
	if errors.Is(err, repositories.ErrAlreadyExists) {
		utils.LogEvent(s.RequestID, "receipt", "generate", "concurrent receipt detected, reusing", zap.String("transaction_id", txn.ID))
		return s.Store.FindByTransaction(ctx, txn.ID)
	}
	if err != nil {
		return models.Receipt{}, err
	}
	rc.ReceiptNumber = number
	return rc, nil
}

// Get resolves a receipt by id, then by receipt number.
func (s ReceiptService) Get(ctx context.Context, ref string) (models.Receipt, error) {
	ref = strings.TrimSpace(ref)
	rc, err := s.Store.FindByID(ctx, ref)
	if errors.Is(err, repositories.ErrNotFound) {
		rc, err = s.Store.FindByNumber(ctx, ref)
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Receipt{}, domain.NotFoundError{Resource: "receipt", ID: ref, Err: err}
	}
	return rc, err
}

func (s ReceiptService) ListByBooking(ctx context.Context, bookingID string) ([]models.Receipt, error) {
	return s.Store.ListByBooking(ctx, bookingID)
}

// MarkEmailed records delivery. It reports false when the receipt was
// already marked.
func (s ReceiptService) MarkEmailed(ctx context.Context, id string) (bool, error) {
	return s.Store.MarkEmailed(ctx, id, s.now())
}

func (s ReceiptService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s ReceiptService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
