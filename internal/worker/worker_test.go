package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "1", Type: task.Type()}, nil
}

type fakeReceipts struct {
	byID   map[string]models.Receipt
	marked []string
}

func (f *fakeReceipts) Get(_ context.Context, ref string) (models.Receipt, error) {
	rc, ok := f.byID[ref]
	if !ok {
		return models.Receipt{}, domain.NotFoundError{Resource: "receipt", ID: ref}
	}
	return rc, nil
}

func (f *fakeReceipts) MarkEmailed(_ context.Context, id string) (bool, error) {
	f.marked = append(f.marked, id)
	rc := f.byID[id]
	if rc.Emailed {
		return false, nil
	}
	rc.Emailed = true
	f.byID[id] = rc
	return true, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (m *fakeMailer) SendReceipt(_ context.Context, rc models.Receipt, _ []byte, filename string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, rc.ReceiptNumber+"|"+filename)
	return nil
}

func emailTask(t *testing.T, rc models.Receipt) *asynq.Task {
	t.Helper()
	task, _, err := NewReceiptEmailTask(rc)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestReceiptQueueEnqueuesTask(t *testing.T) {
	enq := &fakeEnqueuer{}
	q := ReceiptQueue{Client: enq}
	if err := q.ReceiptReady(context.Background(), models.Receipt{ID: "r1", ReceiptNumber: "RCP-2026-000001", BookingID: "b1"}); err != nil {
		t.Fatalf("receipt ready: %v", err)
	}
	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TypeReceiptEmail {
		t.Fatalf("unexpected tasks %v", enq.tasks)
	}
	var p ReceiptEmailPayload
	if err := json.Unmarshal(enq.tasks[0].Payload(), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ReceiptID != "r1" || p.BookingID != "b1" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestReceiptQueueTreatsDuplicateAsQueued(t *testing.T) {
	q := ReceiptQueue{Client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}}
	if err := q.ReceiptReady(context.Background(), models.Receipt{ID: "r1"}); err != nil {
		t.Fatalf("duplicate enqueue should be ignored, got %v", err)
	}
	q = ReceiptQueue{Client: &fakeEnqueuer{err: errors.New("redis down")}}
	if err := q.ReceiptReady(context.Background(), models.Receipt{ID: "r1"}); err == nil {
		t.Fatalf("expected enqueue error")
	}
}

func TestHandlerSendsAndMarks(t *testing.T) {
	rc := models.Receipt{ID: "r1", ReceiptNumber: "RCP-2026-000001"}
	store := &fakeReceipts{byID: map[string]models.Receipt{"r1": rc}}
	mailer := &fakeMailer{}
	h := ReceiptEmailHandler{Receipts: store, Mailer: mailer, Render: func(context.Context, string) ([]byte, string, error) {
		return []byte("%PDF"), "RECEIPT_RCP-2026-000001.pdf", nil
	}}

	if err := h.ProcessTask(context.Background(), emailTask(t, rc)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "RCP-2026-000001|RECEIPT_RCP-2026-000001.pdf" {
		t.Fatalf("unexpected sends %v", mailer.sent)
	}
	if len(store.marked) != 1 || !store.byID["r1"].Emailed {
		t.Fatalf("receipt not marked emailed")
	}

	if err := h.ProcessTask(context.Background(), emailTask(t, rc)); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("already emailed receipt was sent again")
	}
}

func TestHandlerRetriesMailFailure(t *testing.T) {
	rc := models.Receipt{ID: "r1"}
	store := &fakeReceipts{byID: map[string]models.Receipt{"r1": rc}}
	h := ReceiptEmailHandler{Receipts: store, Mailer: &fakeMailer{err: errors.New("smtp unavailable")}}

	err := h.ProcessTask(context.Background(), emailTask(t, rc))
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("mail failure should be retried, got %v", err)
	}
	if len(store.marked) != 0 {
		t.Fatalf("receipt must not be marked when sending fails")
	}
}

func TestHandlerSkipsRetryForBadTasks(t *testing.T) {
	h := ReceiptEmailHandler{Receipts: &fakeReceipts{byID: map[string]models.Receipt{}}, Mailer: LogMailer{}}

	if err := h.ProcessTask(context.Background(), asynq.NewTask(TypeReceiptEmail, []byte("{"))); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload: expected SkipRetry, got %v", err)
	}
	if err := h.ProcessTask(context.Background(), emailTask(t, models.Receipt{ID: "gone"})); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("missing receipt: expected SkipRetry, got %v", err)
	}
}
