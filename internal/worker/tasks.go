package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"settlement/internal/domain/models"
)

const TypeReceiptEmail = "receipt:email"

const (
	receiptEmailMaxRetry = 5
	receiptEmailTimeout  = time.Minute
)

type ReceiptEmailPayload struct {
	ReceiptID     string `json:"receipt_id"`
	ReceiptNumber string `json:"receipt_number"`
	BookingID     string `json:"booking_id"`
}

func NewReceiptEmailTask(rc models.Receipt) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ReceiptEmailPayload{ReceiptID: rc.ID, ReceiptNumber: rc.ReceiptNumber, BookingID: rc.BookingID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeReceiptEmail, b)
	opts := []asynq.Option{
		asynq.MaxRetry(receiptEmailMaxRetry),
		asynq.Timeout(receiptEmailTimeout),
		asynq.TaskID("receipt-email-" + rc.ID),
	}
	return task, opts, nil
}

// Enqueuer is the part of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReceiptQueue hands committed receipts to the mail worker.
type ReceiptQueue struct {
	Client Enqueuer
}

func (q ReceiptQueue) ReceiptReady(ctx context.Context, rc models.Receipt) error {
	task, opts, err := NewReceiptEmailTask(rc)
	if err != nil {
		return err
	}
	if _, err := q.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", TypeReceiptEmail, err)
	}
	return nil
}
