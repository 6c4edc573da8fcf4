package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rupeevault/backend/internal/models"
)

func (r *Repository) CreateUnhold(ctx context.Context, tx pgx.Tx, u *models.UnholdRequest) error {
	return tx.QueryRow(ctx, `
		INSERT INTO unhold_requests (id, user_id, status, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, u.ID, u.UserID, u.Status, nullable(u.Reason)).Scan(&u.CreatedAt)
}

// GetOpenUnholdByUser returns the user's pending unhold request, or nil if
// none is open.
func (r *Repository) GetOpenUnholdByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.UnholdRequest, error) {
	u, err := scanUnhold(tx.QueryRow(ctx, `
		SELECT id, user_id, status, COALESCE(reason, ''), decided_by, decided_at, created_at
		FROM unhold_requests WHERE user_id = $1 AND status = 'pending' FOR UPDATE
	`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *Repository) GetUnholdForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.UnholdRequest, error) {
	u, err := scanUnhold(tx.QueryRow(ctx, `
		SELECT id, user_id, status, COALESCE(reason, ''), decided_by, decided_at, created_at
		FROM unhold_requests WHERE id = $1 FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (r *Repository) ResolveUnhold(ctx context.Context, tx pgx.Tx, u *models.UnholdRequest) error {
	_, err := tx.Exec(ctx, `
		UPDATE unhold_requests SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1
	`, u.ID, u.Status, u.DecidedBy, u.DecidedAt)
	return err
}

func (r *Repository) ListUnholdsByUser(ctx context.Context, userID uuid.UUID) ([]*models.UnholdRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, status, COALESCE(reason, ''), decided_by, decided_at, created_at
		FROM unhold_requests WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.UnholdRequest
	for rows.Next() {
		u, err := scanUnhold(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func scanUnhold(row pgx.Row) (*models.UnholdRequest, error) {
	var u models.UnholdRequest
	err := row.Scan(&u.ID, &u.UserID, &u.Status, &u.Reason, &u.DecidedBy, &u.DecidedAt, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
