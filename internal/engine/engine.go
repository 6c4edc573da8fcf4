package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/backend/internal/ledger"
	"github.com/rupeevault/backend/internal/models"
	"github.com/rupeevault/backend/internal/notify"
)

// TxRunner executes fn inside a database transaction: commit on nil,
// rollback on error. Every transition's balance update and status write go
// through one InTx call so they commit together or not at all.
type TxRunner interface {
	InTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// RegistryRepo is the request-registry surface the engine needs.
type RegistryRepo interface {
	Create(ctx context.Context, tx pgx.Tx, m *models.MovementRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MovementRequest, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.MovementRequest, error)
	Update(ctx context.Context, tx pgx.Tx, m *models.MovementRequest) error
	AppendTransition(ctx context.Context, tx pgx.Tx, t *models.Transition) error
	ListTransitions(ctx context.Context, requestID uuid.UUID) ([]models.Transition, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.MovementRequest, error)
	CreateUnhold(ctx context.Context, tx pgx.Tx, u *models.UnholdRequest) error
	GetOpenUnholdByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.UnholdRequest, error)
	GetUnholdForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.UnholdRequest, error)
	ResolveUnhold(ctx context.Context, tx pgx.Tx, u *models.UnholdRequest) error
	ListUnholdsByUser(ctx context.Context, userID uuid.UUID) ([]*models.UnholdRequest, error)
}

// TimerScheduler arms the fire-once processing-window expiry for a request.
// Scheduling happens in the same transaction as the transition into
// processing, so the deadline is persisted iff the transition commits.
type TimerScheduler interface {
	ScheduleExpiryTx(ctx context.Context, tx pgx.Tx, requestID uuid.UUID, at time.Time) error
}

// TicketBridge opens a support ticket linked to a request. Implementations
// return the already-open ticket when one exists.
type TicketBridge interface {
	OpenTx(ctx context.Context, tx pgx.Tx, requestID, userID uuid.UUID, subject string) (*models.SupportTicket, error)
}

// Notifier is informed fire-and-forget; delivery failures never affect the
// transition that triggered them.
type Notifier interface {
	Publish(ctx context.Context, ev notify.Event)
}

// KYCChecker reports whether the user's KYC status is approved. Absence of
// a record counts as not approved.
type KYCChecker interface {
	Approved(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Discounts resolves deposit discount codes.
type Discounts interface {
	PercentOff(ctx context.Context, code string) (decimal.Decimal, bool, error)
}

type Config struct {
	MinWindowMinutes  int
	MaxWindowMinutes  int
	RetryCeiling      int
	KYCThresholdPaise int64
}

func (c *Config) applyDefaults() {
	if c.MinWindowMinutes <= 0 {
		c.MinWindowMinutes = 20
	}
	if c.MaxWindowMinutes < c.MinWindowMinutes {
		c.MaxWindowMinutes = 30
	}
	if c.RetryCeiling <= 0 {
		c.RetryCeiling = 3
	}
	if c.KYCThresholdPaise <= 0 {
		c.KYCThresholdPaise = 5_000_000 // ₹50,000
	}
}

// Engine owns every status transition and the status history. All
// transitions for one request id are serialized by locks; balance mutation
// is serialized per account by the ledger's row locking.
type Engine struct {
	cfg      Config
	db       TxRunner
	registry RegistryRepo
	ledger   ledger.Service
	timers   TimerScheduler
	tickets  TicketBridge
	notifier Notifier
	kyc      KYCChecker
	discount Discounts
	locks    *keyMutex
	log      *slog.Logger
	now      func() time.Time
}

func New(cfg Config, db TxRunner, reg RegistryRepo, led ledger.Service, timers TimerScheduler,
	tickets TicketBridge, notifier Notifier, kyc KYCChecker, discount Discounts, log *slog.Logger) *Engine {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		db:       db,
		registry: reg,
		ledger:   led,
		timers:   timers,
		tickets:  tickets,
		notifier: notifier,
		kyc:      kyc,
		discount: discount,
		locks:    newKeyMutex(),
		log:      log,
		now:      time.Now,
	}
}

// Get returns the current state of a request together with its full
// transition history.
func (e *Engine) Get(ctx context.Context, requestID uuid.UUID) (*models.MovementRequest, []models.Transition, error) {
	req, err := e.registry.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	history, err := e.registry.ListTransitions(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	return req, history, nil
}

func (e *Engine) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.MovementRequest, error) {
	return e.registry.ListByUser(ctx, userID)
}

func (e *Engine) checkTransition(req *models.MovementRequest, to models.RequestStatus) error {
	if !canTransition(req.Kind, req.Status, to) {
		return fmt.Errorf("%w: %s request %s cannot move from %s to %s",
			ErrInvalidTransition, req.Kind, req.ID, req.Status, to)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, req *models.MovementRequest, reason string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(ctx, notify.Event{
		RequestID: req.ID,
		UserID:    req.UserID,
		Kind:      string(req.Kind),
		Status:    string(req.Status),
		Reason:    reason,
		At:        e.now(),
	})
}

func mapAccountErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: account", ErrNotFound)
	}
	return err
}
