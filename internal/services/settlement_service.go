package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/events"
	"settlement/internal/gateway"
	"settlement/internal/lock"
	"settlement/internal/repositories"
	"settlement/internal/utils"
)

// maxTxAttempts bounds retries of the settlement write on infrastructure
// errors. The gateway is never called again by a retry.
const maxTxAttempts = 3

const fullRefundReason = "Full refund processed"

type BookingStore interface {
	GetByID(ctx context.Context, id string) (models.Booking, error)
	Confirm(ctx context.Context, id string, expectedVersion int64, at time.Time) error
	Cancel(ctx context.Context, id, reason string, at time.Time) error
}

type AccountStore interface {
	UserExists(ctx context.Context, id string) (bool, error)
	GetPaymentMethod(ctx context.Context, id string) (models.PaymentMethod, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReceiptNotifier is told about every committed receipt.
type ReceiptNotifier interface {
	ReceiptReady(ctx context.Context, receipt models.Receipt) error
}

// SettlementService turns pending bookings into paid ones and reverses them
// through refunds.
type SettlementService struct {
	Bookings BookingStore
	Accounts AccountStore
	Ledger   LedgerService
	Invoices InvoiceService
	Receipts ReceiptService
	Gateway  gateway.Gateway
	Tx       TxRunner
	Locks    lock.Locker
	Events   events.Publisher
	Notifier ReceiptNotifier
	Now      utils.Clock

	DefaultCurrency string
	RequestID       string
}

type PaymentRequest struct {
	BookingID         string
	Amount            decimal.Decimal
	Currency          string
	UserID            string
	PaymentMethodID   string
	PaymentMethodType models.PaymentMethodType
	// CardNumber is only used to derive brand and last four; it is never stored.
	CardNumber string
	Billing    models.BillingInfo
}

type PaymentResult struct {
	Transaction models.PaymentTransaction `json:"transaction"`
	Invoice     *models.Invoice           `json:"invoice"`
	Receipt     *models.Receipt           `json:"receipt"`
	Booking     models.Booking            `json:"booking"`
}

type RefundRequest struct {
	TransactionID string
	// Amount defaults to the remaining refundable amount when nil.
	Amount *decimal.Decimal
	Reason string
}

type RefundResult struct {
	Transaction       models.PaymentTransaction `json:"transaction"`
	RefundTransaction models.PaymentTransaction `json:"refund_transaction"`
}

// WithRequestID returns a copy whose logs and child services carry requestID.
func (s SettlementService) WithRequestID(requestID string) SettlementService {
	s.RequestID = requestID
	s.Invoices.RequestID = requestID
	s.Receipts.RequestID = requestID
	return s
}

// ProcessPayment charges a pending booking. A declined charge is returned as
// a FAILED transaction with a nil error; the booking stays PENDING.
func (s SettlementService) ProcessPayment(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		return PaymentResult{}, domain.ValidationError{Field: "booking_id", Msg: "booking id is required"}
	}

	release, err := s.acquire(ctx, "booking:"+req.BookingID)
	if err != nil {
		return PaymentResult{}, err
	}
	defer release()

	booking, err := s.Bookings.GetByID(ctx, req.BookingID)
	if errors.Is(err, repositories.ErrNotFound) {
		return PaymentResult{}, domain.NotFoundError{Resource: "booking", ID: req.BookingID, Err: err}
	}
	if err != nil {
		return PaymentResult{}, err
	}

	if !booking.IsPending() {
		return PaymentResult{}, domain.ValidationError{Field: "booking_id", Msg: "booking is " + string(booking.Status) + ", only PENDING bookings can be charged"}
	}

	currency := firstNonEmpty(booking.Currency, s.DefaultCurrency, utils.DefaultCurrency)
	if c := strings.TrimSpace(req.Currency); c != "" && utils.NormalizeCurrency(c) != utils.NormalizeCurrency(currency) {
		return PaymentResult{}, domain.ValidationError{Field: "currency", Msg: "currency " + utils.NormalizeCurrency(c) + " does not match booking currency " + currency}
	}
	if !req.Amount.Equal(booking.TotalAmount) {
		return PaymentResult{}, domain.ValidationError{
			Field: "amount",
			Msg:   "amount " + utils.FormatMoney(req.Amount) + " does not match booking total " + utils.FormatMoney(booking.TotalAmount),
		}
	}

	rec := ChargeRecord{
		Booking:           booking,
		UserID:            firstNonEmpty(req.UserID, booking.UserID),
		PaymentMethodType: req.PaymentMethodType,
		Currency:          currency,
		Gateway:           s.Gateway.Name(),
	}
	var providerToken string

	if req.UserID != "" {
		ok, err := s.Accounts.UserExists(ctx, req.UserID)
		if err != nil {
			return PaymentResult{}, err
		}
		if !ok {
			return PaymentResult{}, domain.NotFoundError{Resource: "user", ID: req.UserID}
		}
	}
	if req.PaymentMethodID != "" {
		pm, err := s.Accounts.GetPaymentMethod(ctx, req.PaymentMethodID)
		if errors.Is(err, repositories.ErrNotFound) {
			return PaymentResult{}, domain.NotFoundError{Resource: "payment method", ID: req.PaymentMethodID, Err: err}
		}
		if err != nil {
			return PaymentResult{}, err
		}
		if rec.UserID != "" && pm.UserID != "" && pm.UserID != rec.UserID {
			return PaymentResult{}, domain.ValidationError{Field: "payment_method_id", Msg: "payment method does not belong to the paying user"}
		}
		rec.PaymentMethodID = pm.ID
		rec.PaymentMethodType = pm.Type
		rec.CardBrand = pm.CardBrand
		rec.CardLastFour = pm.CardLastFour
		providerToken = pm.ProviderToken
	}
	if req.CardNumber != "" && rec.CardLastFour == "" {
		rec.CardBrand = gateway.CardBrand(req.CardNumber)
		rec.CardLastFour = gateway.LastFour(req.CardNumber)
	}

	rec.Reservation, err = s.Ledger.ReserveNumber(ctx, KindTransaction)
	if err != nil {
		return PaymentResult{}, err
	}

	outcome := s.charge(ctx, gateway.ChargeRequest{
		Reference:         rec.Number,
		BookingID:         booking.ID,
		Amount:            booking.TotalAmount,
		Currency:          currency,
		PaymentMethodType: rec.PaymentMethodType,
		ProviderToken:     providerToken,
		CustomerID:        rec.UserID,
		Description:       "Booking " + firstNonEmpty(booking.Reference, booking.ID),
	})
	rec.Outcome = outcome

	if !outcome.Success {
		txn, err := s.recordFailedCharge(ctx, rec)
		if err != nil {
			return PaymentResult{}, err
		}
		s.publish(ctx, s.transactionEvent(events.PaymentFailed, txn))
		return PaymentResult{Transaction: txn, Booking: booking}, nil
	}

	var result PaymentResult
	err = s.inTx(ctx, func(ctx context.Context) error {
		txn, err := s.Ledger.RecordCharge(ctx, rec)
		if err != nil {
			return err
		}

		now := s.now()
		if err := s.Bookings.Confirm(ctx, booking.ID, booking.Version, now); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				return domain.ConflictError{Resource: "booking", Msg: "booking was settled by a concurrent request", Err: err}
			}
			return err
		}
		confirmed := booking
		confirmed.Status = models.BookingConfirmed
		confirmed.ConfirmedAt = &now
		confirmed.UpdatedAt = now
		confirmed.Version++

		inv, err := s.Invoices.Generate(ctx, confirmed, txn, req.Billing)
		if err != nil {
			return err
		}
		rc, err := s.Receipts.Generate(ctx, confirmed, txn, inv)
		if err != nil {
			return err
		}
		result = PaymentResult{Transaction: txn, Invoice: &inv, Receipt: &rc, Booking: confirmed}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			s.voidCharge(ctx, rec)
		}
		return PaymentResult{}, err
	}

	utils.LogEvent(s.RequestID, "settlement", "payment", "booking settled",
		zap.String("booking_id", booking.ID),
		zap.String("transaction_number", result.Transaction.TransactionNumber),
		zap.String("invoice_number", result.Invoice.InvoiceNumber),
		zap.String("gateway", rec.Gateway),
	)
	s.publish(ctx,
		s.transactionEvent(events.PaymentCompleted, result.Transaction),
		events.Event{ID: uuid.NewString(), Type: events.BookingConfirmed, BookingID: booking.ID, TransactionID: result.Transaction.ID,
			Amount: booking.TotalAmount, Currency: currency, OccurredAt: s.now()},
	)
	s.notifyReceipt(ctx, *result.Receipt)
	return result, nil
}

// voidCharge returns money captured for a booking another request confirmed
// first, and records the attempt as FAILED.
func (s SettlementService) voidCharge(ctx context.Context, rec ChargeRecord) {
	void := s.refund(ctx, gateway.RefundRequest{
		Reference:         "VOID-" + rec.Number,
		OriginalReference: rec.Outcome.ProviderReference,
		Amount:            rec.Booking.TotalAmount,
		Currency:          rec.Currency,
		Reason:            "duplicate charge",
	})
	if !void.Success {
		utils.L().Error("void of duplicate charge failed",
			zap.String("request_id", s.RequestID),
			zap.String("booking_id", rec.Booking.ID),
			zap.String("transaction_number", rec.Number),
			zap.String("gateway_reference", rec.Outcome.ProviderReference),
			zap.String("message", void.Message),
		)
	}
	rec.FailureReason = "booking was settled by a concurrent request; charge voided"
	if _, err := s.recordFailedCharge(ctx, rec); err != nil {
		utils.L().Error("record voided charge", zap.String("booking_id", rec.Booking.ID), zap.Error(err))
	}
}

func (s SettlementService) recordFailedCharge(ctx context.Context, rec ChargeRecord) (models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		txn, err = s.Ledger.RecordCharge(ctx, rec)
		return err
	})
	if err != nil {
		return models.PaymentTransaction{}, err
	}
	utils.LogEvent(s.RequestID, "settlement", "payment", "charge declined",
		zap.String("booking_id", rec.Booking.ID),
		zap.String("transaction_number", txn.TransactionNumber),
		zap.String("gateway", rec.Gateway),
		zap.String("reason", txn.FailureReason),
	)
	return txn, nil
}

// ProcessRefund returns all or part of a completed charge. A declined refund
// is returned as a FAILED refund transaction with a nil error.
func (s SettlementService) ProcessRefund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if req.TransactionID == "" {
		return RefundResult{}, domain.ValidationError{Field: "transaction_id", Msg: "transaction id is required"}
	}

	release, err := s.acquire(ctx, "transaction:"+req.TransactionID)
	if err != nil {
		return RefundResult{}, err
	}
	defer release()

	original, err := s.Ledger.FindByID(ctx, req.TransactionID)
	if err != nil {
		return RefundResult{}, err
	}

	amount := original.RemainingRefundable()
	if req.Amount != nil {
		amount = *req.Amount
	}
	if err := s.Ledger.ValidateRefund(original, amount); err != nil {
		return RefundResult{}, err
	}
	reason := utils.NormalizeSpace(req.Reason)

	reserved, err := s.Ledger.ReserveNumber(ctx, KindRefund)
	if err != nil {
		return RefundResult{}, err
	}

	outcome := s.refund(ctx, gateway.RefundRequest{
		Reference:         reserved.Number,
		OriginalReference: original.GatewayReference,
		Amount:            amount,
		Currency:          original.Currency,
		Reason:            reason,
	})
	gatewayName := s.Gateway.Name()

	if !outcome.Success {
		refundTxn, err := s.recordRefund(ctx, reserved, original, amount, outcome, gatewayName, reason, "")
		if err != nil {
			return RefundResult{}, err
		}
		s.publish(ctx, s.transactionEvent(events.RefundFailed, refundTxn))
		return RefundResult{Transaction: original, RefundTransaction: refundTxn}, nil
	}

	var result RefundResult
	var cancelled bool
	err = s.inTx(ctx, func(ctx context.Context) error {
		refundTxn, err := s.Ledger.RecordRefund(ctx, reserved, original, amount, outcome, gatewayName, reason, "")
		if err != nil {
			return err
		}
		updated, err := s.Ledger.ApplyRefund(ctx, original, amount, reason)
		if err != nil {
			return err
		}
		cancelled = false
		if updated.Status == models.TransactionRefunded {
			cancelErr := s.Bookings.Cancel(ctx, updated.BookingID, firstNonEmpty(reason, fullRefundReason), s.now())
			switch {
			case cancelErr == nil:
				cancelled = true
			case errors.Is(cancelErr, repositories.ErrVersionConflict):
				utils.L().Warn("fully refunded booking was not CONFIRMED",
					zap.String("request_id", s.RequestID), zap.String("booking_id", updated.BookingID))
			default:
				return cancelErr
			}
		}
		result = RefundResult{Transaction: updated, RefundTransaction: refundTxn}
		return nil
	})
	if err != nil {
		if domain.IsValidation(err) {
			// money moved but the ledger could not absorb it; keep the attempt on record
			if _, recErr := s.recordRefund(ctx, reserved, original, amount, outcome, gatewayName, reason, err.Error()); recErr != nil {
				utils.L().Error("record rejected refund", zap.String("transaction_id", original.ID), zap.Error(recErr))
			}
		}
		return RefundResult{}, err
	}

	utils.LogEvent(s.RequestID, "settlement", "refund", "refund applied",
		zap.String("booking_id", original.BookingID),
		zap.String("transaction_number", original.TransactionNumber),
		zap.String("refund_number", result.RefundTransaction.TransactionNumber),
		zap.String("status", string(result.Transaction.Status)),
	)
	evs := []events.Event{s.transactionEvent(events.RefundCompleted, result.RefundTransaction)}
	if cancelled {
		evs = append(evs, events.Event{ID: uuid.NewString(), Type: events.BookingCancelled, BookingID: original.BookingID,
			TransactionID: original.ID, Amount: amount, Currency: original.Currency,
			Reason: firstNonEmpty(reason, fullRefundReason), OccurredAt: s.now()})
	}
	s.publish(ctx, evs...)
	return result, nil
}

func (s SettlementService) recordRefund(ctx context.Context, number Reservation, original models.PaymentTransaction, amount decimal.Decimal, outcome gateway.Outcome, gatewayName, reason, failure string) (models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		txn, err = s.Ledger.RecordRefund(ctx, number, original, amount, outcome, gatewayName, reason, failure)
		return err
	})
	return txn, err
}

func (s SettlementService) GetTransaction(ctx context.Context, ref string) (models.PaymentTransaction, error) {
	return s.Ledger.Get(ctx, ref)
}

func (s SettlementService) SearchTransactions(ctx context.Context, f models.TransactionFilter, page, limit int) (domain.Page[models.PaymentTransaction], error) {
	return s.Ledger.Search(ctx, f, domain.Pagination{Page: page, Limit: limit})
}

func (s SettlementService) GetInvoice(ctx context.Context, ref string) (models.Invoice, error) {
	return s.Invoices.Get(ctx, ref)
}

func (s SettlementService) GetReceipt(ctx context.Context, ref string) (models.Receipt, error) {
	return s.Receipts.Get(ctx, ref)
}

func (s SettlementService) ListInvoicesForBooking(ctx context.Context, bookingID string) ([]models.Invoice, error) {
	if err := s.requireBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.Invoices.ListByBooking(ctx, bookingID)
}

func (s SettlementService) ListReceiptsForBooking(ctx context.Context, bookingID string) ([]models.Receipt, error) {
	if err := s.requireBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.Receipts.ListByBooking(ctx, bookingID)
}

func (s SettlementService) requireBooking(ctx context.Context, id string) error {
	_, err := s.Bookings.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return domain.NotFoundError{Resource: "booking", ID: id, Err: err}
	}
	return err
}

// inTx runs fn in one database transaction, retrying infrastructure errors.
// Domain errors and a cancelled ctx end the loop at once.
func (s SettlementService) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.Tx.RunInTx(ctx, fn)
		if err == nil || domain.IsDomain(err) || ctx.Err() != nil {
			return err
		}
		utils.L().Warn("settlement write failed, retrying",
			zap.String("request_id", s.RequestID), zap.Int("attempt", attempt), zap.Error(err))
	}
	return domain.InternalError{Msg: "settlement write failed", Err: err}
}

func (s SettlementService) charge(ctx context.Context, req gateway.ChargeRequest) gateway.Outcome {
	out, err := s.Gateway.Charge(ctx, req)
	if err != nil {
		utils.L().Warn("gateway charge error", zap.String("request_id", s.RequestID),
			zap.String("transaction_number", req.Reference), zap.String("gateway", s.Gateway.Name()), zap.Error(err))
		return gateway.Failed("gateway error: " + err.Error())
	}
	return out
}

func (s SettlementService) refund(ctx context.Context, req gateway.RefundRequest) gateway.Outcome {
	out, err := s.Gateway.Refund(ctx, req)
	if err != nil {
		utils.L().Warn("gateway refund error", zap.String("request_id", s.RequestID),
			zap.String("transaction_number", req.Reference), zap.String("gateway", s.Gateway.Name()), zap.Error(err))
		return gateway.Failed("gateway error: " + err.Error())
	}
	return out
}

func (s SettlementService) acquire(ctx context.Context, key string) (func(), error) {
	if s.Locks == nil {
		return func() {}, nil
	}
	release, err := s.Locks.Acquire(ctx, key)
	if err != nil {
		return nil, domain.ConflictError{Resource: strings.SplitN(key, ":", 2)[0], Msg: "another settlement request is in progress", Err: err}
	}
	return release, nil
}

func (s SettlementService) transactionEvent(t events.Type, txn models.PaymentTransaction) events.Event {
	return events.Event{
		ID:                uuid.NewString(),
		Type:              t,
		BookingID:         txn.BookingID,
		TransactionID:     txn.ID,
		TransactionNumber: txn.TransactionNumber,
		Amount:            txn.Amount,
		Currency:          txn.Currency,
		Reason:            txn.FailureReason,
		OccurredAt:        s.now(),
	}
}

// publish never fails the request; delivery problems are only logged.
func (s SettlementService) publish(ctx context.Context, evs ...events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(context.WithoutCancel(ctx), evs...); err != nil {
		utils.L().Warn("publish settlement events", zap.String("request_id", s.RequestID), zap.Int("count", len(evs)), zap.Error(err))
	}
}

func (s SettlementService) notifyReceipt(ctx context.Context, rc models.Receipt) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.ReceiptReady(context.WithoutCancel(ctx), rc); err != nil {
		utils.L().Warn("queue receipt delivery", zap.String("request_id", s.RequestID), zap.String("receipt_number", rc.ReceiptNumber), zap.Error(err))
	}
}

func (s SettlementService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

// NewSettlementService wires the SQL repositories into a coordinator. Locks,
// Events and Notifier are optional and left to the caller.
func NewSettlementService(conn *sql.DB, tx TxRunner, gw gateway.Gateway) SettlementService {
	ids := IdentifierService{}
	return SettlementService{
		Bookings: repositories.BookingRepository{DB: conn},
		Accounts: repositories.AccountRepository{DB: conn},
		Ledger:   LedgerService{Store: repositories.TransactionRepository{DB: conn}, IDs: ids},
		Invoices: InvoiceService{Store: repositories.InvoiceRepository{DB: conn}, IDs: ids},
		Receipts: ReceiptService{Store: repositories.ReceiptRepository{DB: conn}, IDs: ids},
		Gateway:  gw,
		Tx:       tx,
	}
}
