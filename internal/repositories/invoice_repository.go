package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	intdb "settlement/internal/db"
	"settlement/internal/domain/models"
	"settlement/internal/utils"
)

type InvoiceRepository struct {
	DB *sql.DB
}

const invoiceColumns = `id, invoice_number, booking_id, user_id, transaction_id, status, invoice_date, paid_at,
	subtotal_cents, taxes_cents, fees_cents, discount_cents, total_amount_cents, currency,
	billing_name, billing_email, billing_phone, billing_address_line1, billing_address_line2,
	billing_city, billing_state, billing_postal_code, billing_country,
	COALESCE(tax_breakdown, ''), created_at`

// Insert stores a new invoice. ErrAlreadyExists means the booking already has
// one; ErrDuplicateNumber means the number was taken.
func (r InvoiceRepository) Insert(ctx context.Context, inv models.Invoice) error {
	breakdown, err := json.Marshal(inv.TaxBreakdown)
	if err != nil {
		return fmt.Errorf("encode tax breakdown: %w", err)
	}
	b := inv.Billing
	_, err = intdb.Conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceInsertColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inv.ID, inv.InvoiceNumber, inv.BookingID, inv.UserID, inv.TransactionID, inv.Status,
		inv.InvoiceDate.UTC(), intdb.NullTime(inv.PaidAt),
		utils.ToCents(inv.Subtotal), utils.ToCents(inv.Taxes), utils.ToCents(inv.Fees),
		utils.ToCents(inv.Discount), utils.ToCents(inv.TotalAmount), inv.Currency,
		b.Name, b.Email, b.Phone, b.AddressLine1, b.AddressLine2, b.City, b.State, b.PostalCode, b.Country,
		string(breakdown), inv.CreatedAt.UTC(),
	)
	if err != nil {
		switch {
		case intdb.IsUniqueViolation(err, "booking_id"):
			return ErrAlreadyExists
		case intdb.IsUniqueViolation(err, "invoice_number"):
			return ErrDuplicateNumber
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

const invoiceInsertColumns = `id, invoice_number, booking_id, user_id, transaction_id, status, invoice_date, paid_at,
	subtotal_cents, taxes_cents, fees_cents, discount_cents, total_amount_cents, currency,
	billing_name, billing_email, billing_phone, billing_address_line1, billing_address_line2,
	billing_city, billing_state, billing_postal_code, billing_country, tax_breakdown, created_at`

func (r InvoiceRepository) FindByID(ctx context.Context, id string) (models.Invoice, error) {
	return r.findOne(ctx, "id", id)
}

func (r InvoiceRepository) FindByNumber(ctx context.Context, number string) (models.Invoice, error) {
	return r.findOne(ctx, "invoice_number", number)
}

func (r InvoiceRepository) FindByBooking(ctx context.Context, bookingID string) (models.Invoice, error) {
	return r.findOne(ctx, "booking_id", bookingID)
}

func (r InvoiceRepository) findOne(ctx context.Context, column, value string) (models.Invoice, error) {
	row := intdb.Conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE `+column+`=? LIMIT 1`, value)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Invoice{}, ErrNotFound
	}
	if err != nil {
		return models.Invoice{}, fmt.Errorf("get invoice by %s: %w", column, err)
	}
	return inv, nil
}

func (r InvoiceRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.Invoice, error) {
	rows, err := intdb.Conn(ctx, r.DB).QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE booking_id=? ORDER BY created_at DESC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r InvoiceRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var n int
	if err := intdb.Conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT COUNT(1) FROM invoices WHERE invoice_number=?`, number).Scan(&n); err != nil {
		return false, fmt.Errorf("check invoice number: %w", err)
	}
	return n > 0, nil
}

func scanInvoice(row intdb.RowScanner) (models.Invoice, error) {
	var (
		inv                                    models.Invoice
		subtotal, taxes, fees, discount, total int64
		paidAt                                 sql.NullTime
		breakdown                              string
	)
	b := &inv.Billing
	if err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.BookingID, &inv.UserID, &inv.TransactionID, &inv.Status,
		&inv.InvoiceDate, &paidAt,
		&subtotal, &taxes, &fees, &discount, &total, &inv.Currency,
		&b.Name, &b.Email, &b.Phone, &b.AddressLine1, &b.AddressLine2, &b.City, &b.State, &b.PostalCode, &b.Country,
		&breakdown, &inv.CreatedAt,
	); err != nil {
		return models.Invoice{}, err
	}
	inv.Subtotal = utils.FromCents(subtotal)
	inv.Taxes = utils.FromCents(taxes)
	inv.Fees = utils.FromCents(fees)
	inv.Discount = utils.FromCents(discount)
	inv.TotalAmount = utils.FromCents(total)
	inv.PaidAt = intdb.TimePtr(paidAt)
	inv.InvoiceDate = inv.InvoiceDate.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.TaxBreakdown = []models.TaxLine{}
	if breakdown != "" {
		if err := json.Unmarshal([]byte(breakdown), &inv.TaxBreakdown); err != nil {
			return models.Invoice{}, fmt.Errorf("decode tax breakdown: %w", err)
		}
	}
	return inv, nil
}
