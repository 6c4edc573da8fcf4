package timers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/rupeevault/backend/internal/engine"
)

// ProcessingExpiryArgs is the fire-once job armed when a withdrawal enters
// processing, scheduled at the window's end. The deadline is part of the
// args so every window gets its own job: a request that re-enters
// processing while an earlier window's job is still queued arms a fresh
// timer instead of being silently deduplicated against the stale one. The
// stale job fires against the engine's deadline check and no-ops.
type ProcessingExpiryArgs struct {
	RequestID uuid.UUID `json:"request_id"`
	Deadline  time.Time `json:"deadline"`
}

func (ProcessingExpiryArgs) Kind() string { return "processing_expiry" }

// One armed timer per (request, deadline). Completed runs are excluded so
// the startup rescan can re-arm a window whose job the queue already ran.
func (ProcessingExpiryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRetryable,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	}
}

// ExpiryEngine is the single entry point a fired timer uses; it is subject
// to the engine's per-request exclusion like any other caller.
type ExpiryEngine interface {
	ExpireProcessing(ctx context.Context, requestID uuid.UUID) error
}

type ProcessingExpiryWorker struct {
	river.WorkerDefaults[ProcessingExpiryArgs]
	engine ExpiryEngine
	log    *slog.Logger
}

func NewProcessingExpiryWorker(eng ExpiryEngine, log *slog.Logger) *ProcessingExpiryWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessingExpiryWorker{engine: eng, log: log}
}

func (w *ProcessingExpiryWorker) Work(ctx context.Context, job *river.Job[ProcessingExpiryArgs]) error {
	err := w.engine.ExpireProcessing(ctx, job.Args.RequestID)
	if errors.Is(err, engine.ErrTimerRace) {
		// Request already completed, failed or held; the timer is stale.
		w.log.Debug("expiry timer raced, no-op", "request_id", job.Args.RequestID)
		return nil
	}
	return err
}
