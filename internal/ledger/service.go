package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/rupeevault/backend/internal/models"
)

// Service is the only surface allowed to mutate account balances. The
// tx-taking methods must run inside the caller's transaction so a balance
// update and the status write that motivated it commit together.
type Service interface {
	CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Account, error)
	Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error
	Release(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error
	SettleWithdrawal(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error
	CreditDeposit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error
	SetWithdrawalsBlocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, blocked bool) error
	RecordEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID) ([]*models.LedgerEntry, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return s.repo.CreateAccount(ctx, userID)
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *service) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Account, error) {
	return s.repo.GetForUpdate(ctx, tx, userID)
}

func (s *service) Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error {
	return s.repo.Reserve(ctx, tx, userID, amountPaise)
}

func (s *service) Release(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error {
	return s.repo.Release(ctx, tx, userID, amountPaise)
}

func (s *service) SettleWithdrawal(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error {
	return s.repo.SettleWithdrawal(ctx, tx, userID, amountPaise)
}

func (s *service) CreditDeposit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error {
	return s.repo.CreditDeposit(ctx, tx, userID, amountPaise)
}

func (s *service) SetWithdrawalsBlocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, blocked bool) error {
	return s.repo.SetWithdrawalsBlocked(ctx, tx, userID, blocked)
}

// RecordEntry assigns the entry id and reference if unset, then inserts.
// Entries are write-once; there is no update path.
func (s *service) RecordEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Reference == "" {
		e.Reference = "LED-" + ulid.Make().String()
	}
	return s.repo.CreateEntry(ctx, tx, e)
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID) ([]*models.LedgerEntry, error) {
	return s.repo.ListEntries(ctx, userID)
}

// ErrInsufficientFunds is returned when a reservation would drive available
// below zero.
var ErrInsufficientFunds = errInsufficientFunds
