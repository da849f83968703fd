package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	intdb "settlement/internal/db"
	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/utils"
)

type TransactionRepository struct {
	DB *sql.DB
}

const transactionColumns = `id, transaction_number, booking_id, user_id, payment_method_id, original_transaction_id,
	type, status, amount_cents, currency, gateway, gateway_reference, COALESCE(gateway_response, ''),
	failure_reason, processed_at, refunded_amount_cents, refund_reason, refunded_at,
	card_last_four, card_brand, payment_method_type, created_at, updated_at`

func (r TransactionRepository) Insert(ctx context.Context, t models.PaymentTransaction) error {
	_, err := intdb.Conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO payment_transactions (
			id, transaction_number, booking_id, user_id, payment_method_id, original_transaction_id,
			type, status, amount_cents, currency, gateway, gateway_reference, gateway_response,
			failure_reason, processed_at, refunded_amount_cents, refund_reason, refunded_at,
			card_last_four, card_brand, payment_method_type, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.TransactionNumber, t.BookingID, t.UserID, t.PaymentMethodID, t.OriginalTransactionID,
		t.Type, t.Status, utils.ToCents(t.Amount), t.Currency, t.Gateway, t.GatewayReference, intdb.NullIfEmpty(t.GatewayResponse),
		utils.Truncate(t.FailureReason, 500), intdb.NullTime(t.ProcessedAt), utils.ToCents(t.RefundedAmount), t.RefundReason, intdb.NullTime(t.RefundedAt),
		t.CardLastFour, t.CardBrand, t.PaymentMethodType, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		if intdb.IsUniqueViolation(err, "transaction_number") {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r TransactionRepository) FindByID(ctx context.Context, id string) (models.PaymentTransaction, error) {
	return r.findOne(ctx, "id", id)
}

func (r TransactionRepository) FindByNumber(ctx context.Context, number string) (models.PaymentTransaction, error) {
	return r.findOne(ctx, "transaction_number", number)
}

func (r TransactionRepository) findOne(ctx context.Context, column, value string) (models.PaymentTransaction, error) {
	row := intdb.Conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE `+column+`=? LIMIT 1`, value)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PaymentTransaction{}, ErrNotFound
	}
	if err != nil {
		return models.PaymentTransaction{}, fmt.Errorf("get transaction by %s: %w", column, err)
	}
	return t, nil
}

func (r TransactionRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var n int
	err := intdb.Conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT COUNT(1) FROM payment_transactions WHERE transaction_number=?`, number).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check transaction number: %w", err)
	}
	return n > 0, nil
}

// Search returns one page of matching rows, newest first, and the full count.
func (r TransactionRepository) Search(ctx context.Context, f models.TransactionFilter, p domain.Pagination) ([]models.PaymentTransaction, int, error) {
	p = p.Normalize()
	where, args := buildTransactionWhere(f)
	conn := intdb.Conn(ctx, r.DB)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM payment_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM payment_transactions` + where +
		` ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`
	rows, err := conn.QueryContext(ctx, query, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("search transactions: %w", err)
	}
	defer rows.Close()

	items := make([]models.PaymentTransaction, 0, p.Limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ApplyRefund adds amount to the refunded total of a refundable charge in a
// single statement. The status is computed from the pre-update total so both
// MySQL and SQLite see the same operand values. ErrNotRefundable means the row
// is not refundable or the amount exceeds what remains.
func (r TransactionRepository) ApplyRefund(ctx context.Context, id string, amount decimal.Decimal, reason string, at time.Time) error {
	cents := utils.ToCents(amount)
	res, err := intdb.Conn(ctx, r.DB).ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = CASE WHEN refunded_amount_cents + ? >= amount_cents THEN ? ELSE ? END,
		    refunded_amount_cents = refunded_amount_cents + ?,
		    refund_reason = ?,
		    refunded_at = ?,
		    updated_at = ?
		WHERE id = ?
		  AND type = ?
		  AND status IN (?, ?)
		  AND refunded_amount_cents + ? <= amount_cents`,
		cents, models.TransactionRefunded, models.TransactionPartiallyRefunded,
		cents, reason, at, at,
		id, models.TransactionBookingPayment,
		models.TransactionCompleted, models.TransactionPartiallyRefunded,
		cents)
	if err != nil {
		return fmt.Errorf("apply refund to %s: %w", id, err)
	}
	if intdb.RowsAffected(res) == 0 {
		return ErrNotRefundable
	}
	return nil
}

func buildTransactionWhere(f models.TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.BookingID != "" {
		clauses = append(clauses, "booking_id = ?")
		args = append(args, f.BookingID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, f.Type)
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.To.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanTransaction(row intdb.RowScanner) (models.PaymentTransaction, error) {
	var (
		t                     models.PaymentTransaction
		amount, refunded      int64
		processed, refundedAt sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.TransactionNumber, &t.BookingID, &t.UserID, &t.PaymentMethodID, &t.OriginalTransactionID,
		&t.Type, &t.Status, &amount, &t.Currency, &t.Gateway, &t.GatewayReference, &t.GatewayResponse,
		&t.FailureReason, &processed, &refunded, &t.RefundReason, &refundedAt,
		&t.CardLastFour, &t.CardBrand, &t.PaymentMethodType, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return models.PaymentTransaction{}, err
	}
	t.Amount = utils.FromCents(amount)
	t.RefundedAmount = utils.FromCents(refunded)
	t.ProcessedAt = intdb.TimePtr(processed)
	t.RefundedAt = intdb.TimePtr(refundedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
