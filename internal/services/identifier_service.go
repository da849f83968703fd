package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"settlement/internal/domain"
	"settlement/internal/repositories"
	"settlement/internal/utils"
)

type IdentifierKind string

const (
	KindTransaction IdentifierKind = "transaction"
	KindRefund      IdentifierKind = "refund"
	KindInvoice     IdentifierKind = "invoice"
	KindReceipt     IdentifierKind = "receipt"
)

// MaxIdentifierAttempts bounds how many candidates are tried before giving up.
const MaxIdentifierAttempts = 10

// ExistsFunc reports whether a number is already taken in the store.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// IdentifierService generates human readable business numbers. It holds no
// state of its own; uniqueness comes from the store.
type IdentifierService struct {
	Now  func() time.Time
	Intn func(n int) int
}

func (s IdentifierService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s IdentifierService) intn(n int) int {
	if s.Intn != nil {
		return s.Intn(n)
	}
	return rand.IntN(n)
}

// Candidate formats one unchecked number of the given kind.
func (s IdentifierService) Candidate(kind IdentifierKind) string {
	now := s.now().UTC()
	switch kind {
	case KindRefund:
		return fmt.Sprintf("REF-TXN%d%04d", now.UnixMilli(), s.intn(10000))
	case KindInvoice:
		return fmt.Sprintf("INV-%d-%06d", now.Year(), s.intn(1000000))
	case KindReceipt:
		return fmt.Sprintf("RCP-%d-%06d", now.Year(), s.intn(1000000))
	default:
		return fmt.Sprintf("TXN%d%04d", now.UnixMilli(), s.intn(10000))
	}
}

// Reservation is a candidate number together with the attempts spent
// finding it. Persist continues from Attempts so one number never costs more
// than MaxIdentifierAttempts candidates.
type Reservation struct {
	Number   string
	Attempts int
}

// Reserve returns a candidate not yet present in the store. The number is not
// held; Persist settles races with the unique index.
func (s IdentifierService) Reserve(ctx context.Context, kind IdentifierKind, exists ExistsFunc) (Reservation, error) {
	for attempt := 1; attempt <= MaxIdentifierAttempts; attempt++ {
		number := s.Candidate(kind)
		if exists == nil {
			return Reservation{Number: number, Attempts: attempt}, nil
		}
		taken, err := exists(ctx, number)
		if err != nil {
			return Reservation{}, err
		}
		if !taken {
			return Reservation{Number: number, Attempts: attempt}, nil
		}
	}
	return Reservation{}, exhausted(kind)
}

// Persist calls insert with the reserved number (or a fresh candidate when it
// is empty) and regenerates whenever insert reports
// repositories.ErrDuplicateNumber. It returns the number that was stored.
func (s IdentifierService) Persist(ctx context.Context, kind IdentifierKind, r Reservation, exists ExistsFunc, insert func(ctx context.Context, number string) error) (string, error) {
	number, attempt := r.Number, r.Attempts
	if number == "" {
		attempt = 0
	} else if attempt < 1 {
		attempt = 1
	}
	for {
		if number == "" {
			if attempt >= MaxIdentifierAttempts {
				return "", exhausted(kind)
			}
			attempt++
			number = s.Candidate(kind)
			if exists != nil {
				taken, err := exists(ctx, number)
				if err != nil {
					return "", err
				}
				if taken {
					number = ""
					continue
				}
			}
		}

		err := insert(ctx, number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, repositories.ErrDuplicateNumber) {
			return "", err
		}
		utils.L().Debug("identifier collision", zap.String("kind", string(kind)), zap.String("number", number), zap.Int("attempt", attempt))
		number = ""
	}
}

func exhausted(kind IdentifierKind) error {
	return domain.ConflictError{
		Resource: string(kind) + "_number",
		Msg:      fmt.Sprintf("could not generate a unique number after %d attempts", MaxIdentifierAttempts),
	}
}
