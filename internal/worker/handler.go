package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/utils"
)

// Mailer delivers a rendered receipt to its recipient.
type Mailer interface {
	SendReceipt(ctx context.Context, rc models.Receipt, pdf []byte, filename string) error
}

// LogMailer only logs what would have been sent.
type LogMailer struct{}

func (LogMailer) SendReceipt(_ context.Context, rc models.Receipt, pdf []byte, filename string) error {
	utils.L().Info("receipt email",
		zap.String("receipt_number", rc.ReceiptNumber),
		zap.String("booking_id", rc.BookingID),
		zap.String("user_id", rc.UserID),
		zap.String("attachment", filename),
		zap.Int("attachment_bytes", len(pdf)),
	)
	return nil
}

type ReceiptStore interface {
	Get(ctx context.Context, ref string) (models.Receipt, error)
	MarkEmailed(ctx context.Context, id string) (bool, error)
}

// ReceiptEmailHandler processes receipt:email tasks.
type ReceiptEmailHandler struct {
	Receipts ReceiptStore
	Mailer   Mailer
	// Render produces the attachment; nil sends without one.
	Render func(ctx context.Context, ref string) ([]byte, string, error)
}

func (h ReceiptEmailHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p ReceiptEmailPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		utils.L().Error("invalid receipt email payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	rc, err := h.Receipts.Get(ctx, p.ReceiptID)
	if domain.IsNotFound(err) {
		utils.L().Warn("receipt for email task not found", zap.String("receipt_id", p.ReceiptID))
		return fmt.Errorf("receipt %s: %v: %w", p.ReceiptID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if rc.Emailed {
		utils.L().Debug("receipt already emailed", zap.String("receipt_number", rc.ReceiptNumber))
		return nil
	}

	var pdf []byte
	var filename string
	if h.Render != nil {
		pdf, filename, err = h.Render(ctx, rc.ID)
		if err != nil {
			return fmt.Errorf("render receipt %s: %w", rc.ReceiptNumber, err)
		}
	}
	if err := h.Mailer.SendReceipt(ctx, rc, pdf, filename); err != nil {
		utils.L().Warn("send receipt email", zap.String("receipt_number", rc.ReceiptNumber), zap.Error(err))
		return err
	}

	marked, err := h.Receipts.MarkEmailed(ctx, rc.ID)
	if err != nil {
		return fmt.Errorf("mark receipt %s emailed: %w", rc.ReceiptNumber, err)
	}
	utils.L().Info("receipt emailed", zap.String("receipt_number", rc.ReceiptNumber), zap.Bool("first_delivery", marked))
	return nil
}
