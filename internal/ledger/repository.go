package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rupeevault/backend/internal/models"
)

var errInsufficientFunds = errors.New("insufficient funds")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `user_id, total_paise, available_paise, blocked_paise, invested_paise, withdrawals_blocked, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.UserID, &a.TotalPaise, &a.AvailablePaise, &a.BlockedPaise, &a.InvestedPaise, &a.WithdrawalsBlocked, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		INSERT INTO accounts (user_id) VALUES ($1)
		RETURNING `+accountColumns+`
	`, userID))
}

func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE user_id = $1
	`, userID))
}

// GetForUpdate locks the account row. Call within a transaction; this is
// what serializes balance mutation per account id.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 FOR UPDATE
	`, userID))
}

// Reserve moves amount from available to blocked. The conditional UPDATE is
// the funds check: zero rows affected means available < amount.
func (r *Repository) Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error {
	result, err := tx.Exec(ctx, `
		UPDATE accounts
		SET available_paise = available_paise - $1, blocked_paise = blocked_paise + $1, updated_at = now()
		WHERE user_id = $2 AND available_paise >= $1
	`, amountPaise, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errInsufficientFunds
	}
	return nil
}

// Release returns a reservation from blocked to available.
func (r *Repository) Release(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts
		SET blocked_paise = blocked_paise - $1, available_paise = available_paise + $1, updated_at = now()
		WHERE user_id = $2
	`, amountPaise, userID)
	return err
}

// SettleWithdrawal debits a completed withdrawal: the reserved amount leaves
// blocked and total together.
func (r *Repository) SettleWithdrawal(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts
		SET blocked_paise = blocked_paise - $1, total_paise = total_paise - $1, updated_at = now()
		WHERE user_id = $2
	`, amountPaise, userID)
	return err
}

// CreditDeposit credits a completed deposit to available and total.
func (r *Repository) CreditDeposit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountPaise int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts
		SET available_paise = available_paise + $1, total_paise = total_paise + $1, updated_at = now()
		WHERE user_id = $2
	`, amountPaise, userID)
	return err
}

func (r *Repository) SetWithdrawalsBlocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, blocked bool) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts SET withdrawals_blocked = $1, updated_at = now() WHERE user_id = $2
	`, blocked, userID)
	return err
}

func (r *Repository) CreateEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, reference, user_id, request_id, entry_type, amount_paise, balance_after_paise)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, e.ID, e.Reference, e.UserID, e.RequestID, e.EntryType, e.AmountPaise, e.BalanceAfterPaise).Scan(&e.CreatedAt)
}

func (r *Repository) ListEntries(ctx context.Context, userID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reference, user_id, request_id, entry_type, amount_paise, balance_after_paise, created_at
		FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Reference, &e.UserID, &e.RequestID, &e.EntryType, &e.AmountPaise, &e.BalanceAfterPaise, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
