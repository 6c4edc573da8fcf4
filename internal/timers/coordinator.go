package timers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rupeevault/backend/internal/engine"
	"github.com/rupeevault/backend/internal/models"
)

// InsertExpiryTxFunc enqueues an expiry job within the given transaction.
// Provided by main as a closure over river.Client.InsertTx.
type InsertExpiryTxFunc func(ctx context.Context, tx pgx.Tx, args ProcessingExpiryArgs, at time.Time) error

// InsertExpiryFunc is the non-transactional variant used by the rescan.
type InsertExpiryFunc func(ctx context.Context, args ProcessingExpiryArgs, at time.Time) error

// RescanSource lists requests whose processing window is currently open.
type RescanSource interface {
	ListProcessing(ctx context.Context) ([]*models.MovementRequest, error)
}

// Coordinator arms processing-window expiry timers. The deadline is durable
// by construction: the job row commits with the transition into processing,
// and Rescan re-arms anything the queue lost across a restart.
type Coordinator struct {
	insertTx InsertExpiryTxFunc
	insert   InsertExpiryFunc
	source   RescanSource
	log      *slog.Logger
}

func NewCoordinator(insertTx InsertExpiryTxFunc, insert InsertExpiryFunc, source RescanSource, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{insertTx: insertTx, insert: insert, source: source, log: log}
}

// ScheduleExpiryTx implements engine.TimerScheduler.
func (c *Coordinator) ScheduleExpiryTx(ctx context.Context, tx pgx.Tx, requestID uuid.UUID, at time.Time) error {
	return c.insertTx(ctx, tx, ProcessingExpiryArgs{RequestID: requestID, Deadline: at}, at)
}

// Rescan walks every request still in processing at startup. Deadlines
// already elapsed fire synchronously, before the server accepts new
// requests; future ones are re-armed (insertion is unique per request, so
// re-arming an already-queued timer is a no-op).
func (c *Coordinator) Rescan(ctx context.Context, eng ExpiryEngine) error {
	reqs, err := c.source.ListProcessing(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, req := range reqs {
		if req.ProcessingEnd == nil {
			c.log.Error("processing request without a deadline", "request_id", req.ID)
			continue
		}
		if !req.ProcessingEnd.After(now) {
			if err := eng.ExpireProcessing(ctx, req.ID); err != nil && !errors.Is(err, engine.ErrTimerRace) {
				return err
			}
			c.log.Info("expired overdue processing window at startup", "request_id", req.ID)
			continue
		}
		if err := c.insert(ctx, ProcessingExpiryArgs{RequestID: req.ID, Deadline: *req.ProcessingEnd}, *req.ProcessingEnd); err != nil {
			return err
		}
	}
	return nil
}
