package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	intdb "settlement/internal/db"
	"settlement/internal/domain/models"
)

// AccountRepository reads the slice of account data settlement depends on.
type AccountRepository struct {
	DB *sql.DB
}

func (r AccountRepository) UserExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := intdb.Conn(ctx, r.DB).QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE id=?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup user %s: %w", id, err)
	}
	return n > 0, nil
}

func (r AccountRepository) GetPaymentMethod(ctx context.Context, id string) (models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := intdb.Conn(ctx, r.DB).QueryRowContext(ctx, `
		SELECT id, user_id, type, card_brand, card_last_four, provider_token
		FROM payment_methods WHERE id=? LIMIT 1`, id).
		Scan(&pm.ID, &pm.UserID, &pm.Type, &pm.CardBrand, &pm.CardLastFour, &pm.ProviderToken)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PaymentMethod{}, ErrNotFound
	}
	if err != nil {
		return models.PaymentMethod{}, fmt.Errorf("get payment method %s: %w", id, err)
	}
	return pm, nil
}

func (r AccountRepository) InsertUser(ctx context.Context, id, name, email string, at time.Time) error {
	_, err := intdb.Conn(ctx, r.DB).ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?,?,?,?)`, id, name, email, at.UTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r AccountRepository) InsertPaymentMethod(ctx context.Context, pm models.PaymentMethod, at time.Time) error {
	_, err := intdb.Conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO payment_methods (id, user_id, type, card_brand, card_last_four, provider_token, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		pm.ID, pm.UserID, pm.Type, pm.CardBrand, pm.CardLastFour, pm.ProviderToken, at.UTC())
	if err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}
