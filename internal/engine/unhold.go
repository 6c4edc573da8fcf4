package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rupeevault/backend/internal/models"
)

// RequestUnhold opens an unhold request for a held account. At most one
// open unhold request exists per user: the lock keyed by user id plus the
// partial unique index on (user_id) WHERE pending enforce it.
func (e *Engine) RequestUnhold(ctx context.Context, userID uuid.UUID, reason string) (*models.UnholdRequest, error) {
	e.locks.Lock(userID)
	defer e.locks.Unlock(userID)

	u := &models.UnholdRequest{
		ID:     uuid.New(),
		UserID: userID,
		Status: models.UnholdPending,
		Reason: reason,
	}
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		acc, err := e.ledger.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return mapAccountErr(err)
		}
		if !acc.WithdrawalsBlocked {
			return fmt.Errorf("%w: account is not on hold", ErrValidation)
		}
		existing, err := e.registry.GetOpenUnholdByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: unhold request %s is already open", ErrDuplicateRequest, existing.ID)
		}
		return e.registry.CreateUnhold(ctx, tx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (e *Engine) ListUnholds(ctx context.Context, userID uuid.UUID) ([]*models.UnholdRequest, error) {
	return e.registry.ListUnholdsByUser(ctx, userID)
}

// ResolveUnhold is the admin decision on an unhold request. Approval lifts
// the account's withdrawal hold in the same transaction.
func (e *Engine) ResolveUnhold(ctx context.Context, actor string, unholdID uuid.UUID, approve bool, reason string) (*models.UnholdRequest, error) {
	var u *models.UnholdRequest
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = e.registry.GetUnholdForUpdate(ctx, tx, unholdID)
		if err != nil {
			return err
		}
		if u.Status != models.UnholdPending {
			return fmt.Errorf("%w: unhold request %s already %s", ErrInvalidTransition, unholdID, u.Status)
		}
		if approve {
			u.Status = models.UnholdApproved
			if err := e.ledger.SetWithdrawalsBlocked(ctx, tx, u.UserID, false); err != nil {
				return err
			}
		} else {
			u.Status = models.UnholdRejected
		}
		now := e.now()
		u.DecidedBy = &actor
		u.DecidedAt = &now
		if reason != "" {
			u.Reason = reason
		}
		return e.registry.ResolveUnhold(ctx, tx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
