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

type BookingRepository struct {
	DB *sql.DB
}

const bookingColumns = `id, reference, user_id, total_amount_cents, currency, status, version,
	confirmed_at, cancelled_at, cancellation_reason, created_at, updated_at`

func (r BookingRepository) GetByID(ctx context.Context, id string) (models.Booking, error) {
	row := intdb.Conn(ctx, r.DB).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=? LIMIT 1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, ErrNotFound
	}
	if err != nil {
		return models.Booking{}, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

// Confirm moves a PENDING booking to CONFIRMED when its version is still
// expectedVersion. ErrVersionConflict means another writer got there first.
func (r BookingRepository) Confirm(ctx context.Context, id string, expectedVersion int64, at time.Time) error {
	res, err := intdb.Conn(ctx, r.DB).ExecContext(ctx, `
		UPDATE bookings
		SET status=?, confirmed_at=?, updated_at=?, version=version+1
		WHERE id=? AND status=? AND version=?`,
		models.BookingConfirmed, at, at, id, models.BookingPending, expectedVersion)
	if err != nil {
		return fmt.Errorf("confirm booking %s: %w", id, err)
	}
	if intdb.RowsAffected(res) == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Cancel moves a CONFIRMED booking to CANCELLED.
func (r BookingRepository) Cancel(ctx context.Context, id, reason string, at time.Time) error {
	res, err := intdb.Conn(ctx, r.DB).ExecContext(ctx, `
		UPDATE bookings
		SET status=?, cancelled_at=?, cancellation_reason=?, updated_at=?, version=version+1
		WHERE id=? AND status=?`,
		models.BookingCancelled, at, reason, at, id, models.BookingConfirmed)
	if err != nil {
		return fmt.Errorf("cancel booking %s: %w", id, err)
	}
	if intdb.RowsAffected(res) == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Insert stores a booking handed over by the reservation flow.
func (r BookingRepository) Insert(ctx context.Context, b models.Booking) error {
	_, err := intdb.Conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.Reference, b.UserID, utils.ToCents(b.TotalAmount), b.Currency, b.Status, b.Version,
		intdb.NullTime(b.ConfirmedAt), intdb.NullTime(b.CancelledAt), b.CancellationReason,
		b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		if intdb.IsUniqueViolation(err, "") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func scanBooking(row intdb.RowScanner) (models.Booking, error) {
	var (
		b                    models.Booking
		cents                int64
		confirmed, cancelled sql.NullTime
	)
	if err := row.Scan(
		&b.ID, &b.Reference, &b.UserID, &cents, &b.Currency, &b.Status, &b.Version,
		&confirmed, &cancelled, &b.CancellationReason, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return models.Booking{}, err
	}
	b.TotalAmount = utils.FromCents(cents)
	b.ConfirmedAt = intdb.TimePtr(confirmed)
	b.CancelledAt = intdb.TimePtr(cancelled)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}
