package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/repositories"
	"settlement/internal/utils"
)

var (
	ServiceTaxRate    = decimal.RequireFromString("0.10")
	ProcessingFeeRate = decimal.RequireFromString("0.05")
)

type InvoiceStore interface {
	Insert(ctx context.Context, inv models.Invoice) error
	FindByID(ctx context.Context, id string) (models.Invoice, error)
	FindByNumber(ctx context.Context, number string) (models.Invoice, error)
	FindByBooking(ctx context.Context, bookingID string) (models.Invoice, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Invoice, error)
	NumberExists(ctx context.Context, number string) (bool, error)
}

type InvoiceService struct {
	Store     InvoiceStore
	IDs       IdentifierService
	Now       utils.Clock
	NewID     func() string
	RequestID string
}

// InvoiceAmounts is the fixed settlement breakdown of a booking total.
type InvoiceAmounts struct {
	Subtotal  decimal.Decimal
	Taxes     decimal.Decimal
	Fees      decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	Breakdown []models.TaxLine
}

// ComputeInvoiceAmounts applies the 10% service tax and 5% processing fee.
func ComputeInvoiceAmounts(subtotal decimal.Decimal) InvoiceAmounts {
	subtotal = utils.RoundMoney(subtotal)
	taxes := utils.RoundMoney(subtotal.Mul(ServiceTaxRate))
	fees := utils.RoundMoney(subtotal.Mul(ProcessingFeeRate))
	discount := decimal.Zero
	return InvoiceAmounts{
		Subtotal: subtotal,
		Taxes:    taxes,
		Fees:     fees,
		Discount: discount,
		Total:    utils.RoundMoney(subtotal.Add(taxes).Add(fees).Sub(discount)),
		Breakdown: []models.TaxLine{
			{Name: "Service Tax", Rate: ServiceTaxRate, Amount: taxes},
			{Name: "Processing Fee", Rate: ProcessingFeeRate, Amount: fees},
		},
	}
}

// Generate returns the booking's invoice, creating it on first call. The
// billing snapshot is taken from the request as given.
func (s InvoiceService) Generate(ctx context.Context, booking models.Booking, txn models.PaymentTransaction, billing models.BillingInfo) (models.Invoice, error) {
	existing, err := s.Store.FindByBooking(ctx, booking.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.Invoice{}, err
	}

	now := s.now()
	amounts := ComputeInvoiceAmounts(booking.TotalAmount)
	inv := models.Invoice{
		ID:            s.newID(),
		BookingID:     booking.ID,
		UserID:        firstNonEmpty(txn.UserID, booking.UserID),
		TransactionID: txn.ID,
		Status:        models.InvoicePaid,
		InvoiceDate:   now,
		PaidAt:        txn.ProcessedAt,
		Subtotal:      amounts.Subtotal,
		Taxes:         amounts.Taxes,
		Fees:          amounts.Fees,
		Discount:      amounts.Discount,
		TotalAmount:   amounts.Total,
		Currency:      firstNonEmpty(txn.Currency, booking.Currency, utils.DefaultCurrency),
		Billing:       trimBilling(billing),
		TaxBreakdown:  amounts.Breakdown,
		CreatedAt:     now,
	}

	number, err := s.IDs.Persist(ctx, KindInvoice, Reservation{}, s.Store.NumberExists, func(ctx context.Context, n string) error {
		inv.InvoiceNumber = n
		return s.Store.Insert(ctx, inv)
	})
	if errors.Is(err, repositories.ErrAlreadyExists) {
		utils.LogEvent(s.RequestID, "invoice", "generate", "concurrent invoice detected, reusing", zap.String("booking_id", booking.ID))
		return s.Store.FindByBooking(ctx, booking.ID)
	}
	if err != nil {
		return models.Invoice{}, err
	}
	inv.InvoiceNumber = number
	return inv, nil
}

// Get resolves an invoice by id, then by invoice number.
func (s InvoiceService) Get(ctx context.Context, ref string) (models.Invoice, error) {
	ref = strings.TrimSpace(ref)
	inv, err := s.Store.FindByID(ctx, ref)
	if errors.Is(err, repositories.ErrNotFound) {
		inv, err = s.Store.FindByNumber(ctx, ref)
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Invoice{}, domain.NotFoundError{Resource: "invoice", ID: ref, Err: err}
	}
	return inv, err
}

func (s InvoiceService) ListByBooking(ctx context.Context, bookingID string) ([]models.Invoice, error) {
	return s.Store.ListByBooking(ctx, bookingID)
}

func (s InvoiceService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s InvoiceService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func trimBilling(b models.BillingInfo) models.BillingInfo {
	return models.BillingInfo{
		Name:         utils.NormalizeSpace(b.Name),
		Email:        strings.TrimSpace(b.Email),
		Phone:        strings.TrimSpace(b.Phone),
		AddressLine1: strings.TrimSpace(b.AddressLine1),
		AddressLine2: strings.TrimSpace(b.AddressLine2),
		City:         strings.TrimSpace(b.City),
		State:        strings.TrimSpace(b.State),
		PostalCode:   strings.TrimSpace(b.PostalCode),
		Country:      strings.TrimSpace(b.Country),
	}
}
