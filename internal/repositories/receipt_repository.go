package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	intdb "settlement/internal/db"
	"settlement/internal/domain/models"
	"settlement/internal/utils"
)

type ReceiptRepository struct {
	DB *sql.DB
}

const receiptColumns = `id, receipt_number, booking_id, user_id, transaction_id, invoice_id, receipt_date,
	amount_cents, currency, payment_method, payment_reference,
	subtotal_cents, taxes_cents, fees_cents, discount_cents, total_amount_cents,
	emailed, emailed_at, created_at`

// Insert stores a new receipt. ErrAlreadyExists means the transaction already
// has one; ErrDuplicateNumber means the number was taken.
func (r ReceiptRepository) Insert(ctx context.Context, rc models.Receipt) error {
	_, err := intdb.Conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO receipts (`+receiptColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rc.ID, rc.ReceiptNumber, rc.BookingID, rc.UserID, rc.TransactionID, rc.InvoiceID, rc.ReceiptDate.UTC(),
		utils.ToCents(rc.Amount), rc.Currency, rc.PaymentMethod, rc.PaymentReference,
		utils.ToCents(rc.Subtotal), utils.ToCents(rc.Taxes), utils.ToCents(rc.Fees),
		utils.ToCents(rc.Discount), utils.ToCents(rc.TotalAmount),
		rc.Emailed, intdb.NullTime(rc.EmailedAt), rc.CreatedAt.UTC(),
	)
	if err != nil {
		switch {
		case intdb.IsUniqueViolation(err, "transaction_id"):
			return ErrAlreadyExists
		case intdb.IsUniqueViolation(err, "receipt_number"):
			return ErrDuplicateNumber
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (r ReceiptRepository) FindByID(ctx context.Context, id string) (models.Receipt, error) {
	return r.findOne(ctx, "id", id)
}

func (r ReceiptRepository) FindByNumber(ctx context.Context, number string) (models.Receipt, error) {
	return r.findOne(ctx, "receipt_number", number)
}

func (r ReceiptRepository) FindByTransaction(ctx context.Context, transactionID string) (models.Receipt, error) {
	return r.findOne(ctx, "transaction_id", transactionID)
}

func (r ReceiptRepository) findOne(ctx context.Context, column, value string) (models.Receipt, error) {
	row := intdb.Conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE `+column+`=? LIMIT 1`, value)
	rc, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Receipt{}, ErrNotFound
	}
	if err != nil {
		return models.Receipt{}, fmt.Errorf("get receipt by %s: %w", column, err)
	}
	return rc, nil
}

func (r ReceiptRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.Receipt, error) {
	rows, err := intdb.Conn(ctx, r.DB).QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE booking_id=? ORDER BY created_at DESC, receipt_number DESC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	out := []models.Receipt{}
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r ReceiptRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var n int
	if err := intdb.Conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT COUNT(1) FROM receipts WHERE receipt_number=?`, number).Scan(&n); err != nil {
		return false, fmt.Errorf("check receipt number: %w", err)
	}
	return n > 0, nil
}

// MarkEmailed flags a receipt as delivered. It reports false when the receipt
// was already flagged.
func (r ReceiptRepository) MarkEmailed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := intdb.Conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE receipts SET emailed=?, emailed_at=? WHERE id=? AND emailed=?`, true, at.UTC(), id, false)
	if err != nil {
		return false, fmt.Errorf("mark receipt emailed: %w", err)
	}
	return intdb.RowsAffected(res) > 0, nil
}

func scanReceipt(row intdb.RowScanner) (models.Receipt, error) {
	var (
		rc                                             models.Receipt
		amount, subtotal, taxes, fees, discount, total int64
		emailedAt                                      sql.NullTime
	)
	if err := row.Scan(
		&rc.ID, &rc.ReceiptNumber, &rc.BookingID, &rc.UserID, &rc.TransactionID, &rc.InvoiceID, &rc.ReceiptDate,
		&amount, &rc.Currency, &rc.PaymentMethod, &rc.PaymentReference,
		&subtotal, &taxes, &fees, &discount, &total,
		&rc.Emailed, &emailedAt, &rc.CreatedAt,
	); err != nil {
		return models.Receipt{}, err
	}
	rc.Amount = utils.FromCents(amount)
	rc.Subtotal = utils.FromCents(subtotal)
	rc.Taxes = utils.FromCents(taxes)
	rc.Fees = utils.FromCents(fees)
	rc.Discount = utils.FromCents(discount)
	rc.TotalAmount = utils.FromCents(total)
	rc.EmailedAt = intdb.TimePtr(emailedAt)
	rc.ReceiptDate = rc.ReceiptDate.UTC()
	rc.CreatedAt = rc.CreatedAt.UTC()
	return rc, nil
}
