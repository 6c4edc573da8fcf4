package timers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/rupeevault/backend/internal/engine"
	"github.com/rupeevault/backend/internal/models"
)

type mockExpiryEngine struct {
	mu    sync.Mutex
	fired []uuid.UUID
	err   error
}

func (m *mockExpiryEngine) ExpireProcessing(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fired = append(m.fired, id)
	return m.err
}

type stubSource struct {
	reqs []*models.MovementRequest
}

func (s *stubSource) ListProcessing(context.Context) ([]*models.MovementRequest, error) {
	return s.reqs, nil
}

func processingReq(end time.Time) *models.MovementRequest {
	start := end.Add(-20 * time.Minute)
	return &models.MovementRequest{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Kind:            models.KindWithdrawal,
		Status:          models.StatusProcessing,
		AmountPaise:     10_000,
		ProcessingStart: &start,
		ProcessingEnd:   &end,
	}
}

func TestWorkerTreatsStaleTimerAsSuccess(t *testing.T) {
	eng := &mockExpiryEngine{err: engine.ErrTimerRace}
	w := NewProcessingExpiryWorker(eng, nil)

	job := &river.Job[ProcessingExpiryArgs]{
		JobRow: &rivertype.JobRow{},
		Args:   ProcessingExpiryArgs{RequestID: uuid.New()},
	}
	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("stale timer err = %v, want nil", err)
	}

	eng.err = errors.New("registry unavailable")
	if err := w.Work(context.Background(), job); err == nil {
		t.Fatal("real failure swallowed, job would never retry")
	}
}

func TestRescanFiresOverdueAndRearmsFuture(t *testing.T) {
	now := time.Now()
	overdue := processingReq(now.Add(-5 * time.Minute))
	future := processingReq(now.Add(15 * time.Minute))

	eng := &mockExpiryEngine{}
	var armed []ProcessingExpiryArgs
	var armedAt []time.Time
	c := NewCoordinator(
		func(context.Context, pgx.Tx, ProcessingExpiryArgs, time.Time) error {
			t.Fatal("rescan must not use the transactional insert")
			return nil
		},
		func(_ context.Context, args ProcessingExpiryArgs, at time.Time) error {
			armed = append(armed, args)
			armedAt = append(armedAt, at)
			return nil
		},
		&stubSource{reqs: []*models.MovementRequest{overdue, future}},
		nil,
	)

	if err := c.Rescan(context.Background(), eng); err != nil {
		t.Fatalf("Rescan: %v", err)
	}

	if len(eng.fired) != 1 || eng.fired[0] != overdue.ID {
		t.Fatalf("fired = %v, want exactly the overdue request %s", eng.fired, overdue.ID)
	}
	if len(armed) != 1 || armed[0].RequestID != future.ID {
		t.Fatalf("armed = %v, want exactly the future request %s", armed, future.ID)
	}
	if !armedAt[0].Equal(*future.ProcessingEnd) {
		t.Fatalf("armed at %v, want the recorded deadline %v", armedAt[0], *future.ProcessingEnd)
	}
	if !armed[0].Deadline.Equal(*future.ProcessingEnd) {
		t.Fatalf("args deadline = %v, want %v", armed[0].Deadline, *future.ProcessingEnd)
	}
}

func TestEachWindowArmsItsOwnJob(t *testing.T) {
	requestID := uuid.New()
	first := time.Now().Add(20 * time.Minute)
	second := time.Now().Add(45 * time.Minute)

	var inserted []ProcessingExpiryArgs
	c := NewCoordinator(
		func(_ context.Context, _ pgx.Tx, args ProcessingExpiryArgs, _ time.Time) error {
			inserted = append(inserted, args)
			return nil
		},
		nil, nil, nil,
	)

	if err := c.ScheduleExpiryTx(context.Background(), nil, requestID, first); err != nil {
		t.Fatal(err)
	}
	if err := c.ScheduleExpiryTx(context.Background(), nil, requestID, second); err != nil {
		t.Fatal(err)
	}

	// Insertion dedupes by args, so a second window for the same request
	// must carry different args or its timer would be silently dropped.
	if len(inserted) != 2 {
		t.Fatalf("inserted %d jobs, want 2", len(inserted))
	}
	if inserted[0] == inserted[1] {
		t.Fatalf("both windows produced identical args %+v, second deadline would never arm", inserted[0])
	}
	if !inserted[1].Deadline.Equal(second) {
		t.Fatalf("second job deadline = %v, want %v", inserted[1].Deadline, second)
	}
}

func TestRescanIgnoresStaleOverdue(t *testing.T) {
	overdue := processingReq(time.Now().Add(-time.Minute))
	eng := &mockExpiryEngine{err: engine.ErrTimerRace}
	c := NewCoordinator(nil,
		func(context.Context, ProcessingExpiryArgs, time.Time) error { return nil },
		&stubSource{reqs: []*models.MovementRequest{overdue}},
		nil,
	)
	if err := c.Rescan(context.Background(), eng); err != nil {
		t.Fatalf("Rescan with raced expiry: %v", err)
	}
}
