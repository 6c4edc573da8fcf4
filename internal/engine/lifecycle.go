package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/rupeevault/backend/internal/models"
)

// Hold moves a withdrawal to held and places the owning account's
// withdrawal hold. Allowed from pending and processing.
func (e *Engine) Hold(ctx context.Context, actor string, requestID uuid.UUID, reason string) (*models.MovementRequest, error) {
	e.locks.Lock(requestID)
	defer e.locks.Unlock(requestID)

	var req *models.MovementRequest
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = e.registry.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := e.checkTransition(req, models.StatusHeld); err != nil {
			return err
		}
		from := req.Status
		req.Status = models.StatusHeld
		req.Blocked = true
		if err := e.ledger.SetWithdrawalsBlocked(ctx, tx, req.UserID, true); err != nil {
			return err
		}
		if err := e.registry.Update(ctx, tx, req); err != nil {
			return err
		}
		return e.registry.AppendTransition(ctx, tx, &models.Transition{
			RequestID: requestID, From: from, To: models.StatusHeld, Actor: actor, Reason: reason,
		})
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, req, reason)
	return req, nil
}

// StartProcessing opens the processing window. durationMinutes is clamped
// to the configured band; the expiry timer is armed in the same transaction
// as the transition. Restarting from failed re-reserves the amount.
func (e *Engine) StartProcessing(ctx context.Context, actor string, requestID uuid.UUID, durationMinutes int) (*models.MovementRequest, error) {
	e.locks.Lock(requestID)
	defer e.locks.Unlock(requestID)

	if durationMinutes < e.cfg.MinWindowMinutes {
		durationMinutes = e.cfg.MinWindowMinutes
	}
	if durationMinutes > e.cfg.MaxWindowMinutes {
		durationMinutes = e.cfg.MaxWindowMinutes
	}

	var req *models.MovementRequest
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = e.registry.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := e.checkTransition(req, models.StatusProcessing); err != nil {
			return err
		}
		from := req.Status
		if from == models.StatusFailed {
			if req.Attempts >= e.cfg.RetryCeiling {
				return fmt.Errorf("%w: request %s exhausted its %d attempts", ErrInvalidTransition, requestID, e.cfg.RetryCeiling)
			}
			if err := e.ledger.Reserve(ctx, tx, req.UserID, req.AmountPaise); err != nil {
				return err
			}
		}
		if from == models.StatusHeld {
			req.Blocked = false
		}
		start := e.now()
		end := start.Add(time.Duration(durationMinutes) * time.Minute)
		req.Status = models.StatusProcessing
		req.ProcessingStart = &start
		req.ProcessingEnd = &end
		if err := e.registry.Update(ctx, tx, req); err != nil {
			return err
		}
		if err := e.registry.AppendTransition(ctx, tx, &models.Transition{
			RequestID: requestID, From: from, To: models.StatusProcessing, Actor: actor,
			Reason: fmt.Sprintf("processing window %d minutes", durationMinutes),
		}); err != nil {
			return err
		}
		return e.timers.ScheduleExpiryTx(ctx, tx, requestID, end)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Complete settles the request: a withdrawal's reserved amount leaves
// blocked and total, a deposit's final amount is credited to available. The
// ledger entry is created exactly once, in the same transaction. An armed
// expiry timer that fires afterwards finds the request terminal and no-ops.
func (e *Engine) Complete(ctx context.Context, actor string, requestID uuid.UUID, transactionRef string) (*models.MovementRequest, error) {
	e.locks.Lock(requestID)
	defer e.locks.Unlock(requestID)

	var req *models.MovementRequest
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = e.registry.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := e.checkTransition(req, models.StatusCompleted); err != nil {
			return err
		}
		from := req.Status
		acc, err := e.ledger.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		ref := transactionRef
		if ref == "" {
			ref = "TXN-" + ulid.Make().String()
		}
		entry := &models.LedgerEntry{
			Reference: ref,
			UserID:    req.UserID,
			RequestID: &req.ID,
		}
		switch req.Kind {
		case models.KindWithdrawal:
			if err := e.ledger.SettleWithdrawal(ctx, tx, req.UserID, req.AmountPaise); err != nil {
				return err
			}
			entry.EntryType = models.EntryWithdrawalSettlement
			entry.AmountPaise = req.AmountPaise
			entry.BalanceAfterPaise = acc.TotalPaise - req.AmountPaise
		case models.KindDeposit:
			if err := e.ledger.CreditDeposit(ctx, tx, req.UserID, req.FinalAmountPaise); err != nil {
				return err
			}
			entry.EntryType = models.EntryDepositCredit
			entry.AmountPaise = req.FinalAmountPaise
			entry.BalanceAfterPaise = acc.TotalPaise + req.FinalAmountPaise
		}
		if err := e.ledger.RecordEntry(ctx, tx, entry); err != nil {
			return err
		}
		req.Status = models.StatusCompleted
		req.TransactionRef = &ref
		if err := e.registry.Update(ctx, tx, req); err != nil {
			return err
		}
		return e.registry.AppendTransition(ctx, tx, &models.Transition{
			RequestID: requestID, From: from, To: models.StatusCompleted, Actor: actor,
			Reason: "transaction " + ref,
		})
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, req, "completed")
	return req, nil
}

// Fail records a failed processing attempt: attempt count increments, the
// reservation returns to available, and the request lands in failed. At the
// retry ceiling it cascades to rejected in the same transaction. A support
// ticket is opened (or the open one kept) either way.
func (e *Engine) Fail(ctx context.Context, actor string, requestID uuid.UUID, reason string) (*models.MovementRequest, error) {
	e.locks.Lock(requestID)
	defer e.locks.Unlock(requestID)

	var req *models.MovementRequest
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = e.registry.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := e.checkTransition(req, models.StatusFailed); err != nil {
			return err
		}
		return e.failTx(ctx, tx, req, actor, reason)
	})
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		e.publish(ctx, req, reason)
	}
	return req, nil
}

// ExpireProcessing is the timer entry point: invoked when a processing
// window elapses. A request that already left processing, or re-entered it
// with a later deadline than the one the timer was armed for, yields
// ErrTimerRace and no state change. Duplicate and stale fires are no-ops.
func (e *Engine) ExpireProcessing(ctx context.Context, requestID uuid.UUID) error {
	e.locks.Lock(requestID)
	defer e.locks.Unlock(requestID)

	var req *models.MovementRequest
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = e.registry.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.StatusProcessing {
			return fmt.Errorf("%w: request %s is %s", ErrTimerRace, requestID, req.Status)
		}
		if req.ProcessingEnd != nil && e.now().Before(*req.ProcessingEnd) {
			return fmt.Errorf("%w: request %s window runs to %s",
				ErrTimerRace, requestID, req.ProcessingEnd.Format(time.RFC3339))
		}
		return e.failTx(ctx, tx, req, "system:timer", "processing window expired")
	})
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		e.publish(ctx, req, "processing window expired")
	}
	return nil
}

// failTx applies the shared fail semantics. Caller has verified the
// transition and holds the request lock and row lock.
func (e *Engine) failTx(ctx context.Context, tx pgx.Tx, req *models.MovementRequest, actor, reason string) error {
	from := req.Status
	req.Status = models.StatusFailed
	req.Attempts++
	if reservationHeld(req.Kind, from) {
		if err := e.ledger.Release(ctx, tx, req.UserID, req.AmountPaise); err != nil {
			return err
		}
	}
	if err := e.registry.Update(ctx, tx, req); err != nil {
		return err
	}
	if err := e.registry.AppendTransition(ctx, tx, &models.Transition{
		RequestID: req.ID, From: from, To: models.StatusFailed, Actor: actor, Reason: reason,
	}); err != nil {
		return err
	}
	if req.Attempts >= e.cfg.RetryCeiling {
		req.Status = models.StatusRejected
		if err := e.registry.Update(ctx, tx, req); err != nil {
			return err
		}
		if err := e.registry.AppendTransition(ctx, tx, &models.Transition{
			RequestID: req.ID, From: models.StatusFailed, To: models.StatusRejected, Actor: actor,
			Reason: "retry attempts exhausted",
		}); err != nil {
			return err
		}
	}
	_, err := e.escalateTx(ctx, tx, req, "withdrawal failed: "+reason)
	return err
}

// Reject is the admin terminal decision, allowed from any non-terminal
// state. Any reservation still held is released.
func (e *Engine) Reject(ctx context.Context, actor string, requestID uuid.UUID, reason string) (*models.MovementRequest, error) {
	e.locks.Lock(requestID)
	defer e.locks.Unlock(requestID)

	var req *models.MovementRequest
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = e.registry.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := e.checkTransition(req, models.StatusRejected); err != nil {
			return err
		}
		from := req.Status
		if reservationHeld(req.Kind, from) {
			if err := e.ledger.Release(ctx, tx, req.UserID, req.AmountPaise); err != nil {
				return err
			}
		}
		req.Status = models.StatusRejected
		req.Blocked = false
		if err := e.registry.Update(ctx, tx, req); err != nil {
			return err
		}
		return e.registry.AppendTransition(ctx, tx, &models.Transition{
			RequestID: requestID, From: from, To: models.StatusRejected, Actor: actor, Reason: reason,
		})
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, req, reason)
	return req, nil
}

// Resubmit returns a failed withdrawal to pending for another attempt,
// re-reserving the amount. Bounded by the retry ceiling.
func (e *Engine) Resubmit(ctx context.Context, actor string, requestID uuid.UUID) (*models.MovementRequest, error) {
	e.locks.Lock(requestID)
	defer e.locks.Unlock(requestID)

	var req *models.MovementRequest
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = e.registry.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.StatusFailed {
			return fmt.Errorf("%w: %s request %s cannot move from %s to %s",
				ErrInvalidTransition, req.Kind, req.ID, req.Status, models.StatusPending)
		}
		if req.Attempts >= e.cfg.RetryCeiling {
			return fmt.Errorf("%w: request %s exhausted its %d attempts", ErrInvalidTransition, requestID, e.cfg.RetryCeiling)
		}
		if err := e.ledger.Reserve(ctx, tx, req.UserID, req.AmountPaise); err != nil {
			return err
		}
		req.Status = models.StatusPending
		if err := e.registry.Update(ctx, tx, req); err != nil {
			return err
		}
		return e.registry.AppendTransition(ctx, tx, &models.Transition{
			RequestID: requestID, From: models.StatusFailed, To: models.StatusPending, Actor: actor,
			Reason: fmt.Sprintf("resubmitted, attempt %d", req.Attempts+1),
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Contest lets the owner of a rejected withdrawal escalate the decision to
// support. The ticket is linked to the request; the request state does not
// change.
func (e *Engine) Contest(ctx context.Context, userID, requestID uuid.UUID) (*models.SupportTicket, error) {
	e.locks.Lock(requestID)
	defer e.locks.Unlock(requestID)

	var ticket *models.SupportTicket
	err := e.db.InTx(ctx, func(tx pgx.Tx) error {
		req, err := e.registry.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.UserID != userID {
			return fmt.Errorf("%w: request", ErrNotFound)
		}
		if req.Kind != models.KindWithdrawal || req.Status != models.StatusRejected {
			return fmt.Errorf("%w: only rejected withdrawals can be contested", ErrValidation)
		}
		ticket, err = e.escalateTx(ctx, tx, req, "withdrawal rejection contested")
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// escalateTx opens (or finds) the request's support ticket and links it.
func (e *Engine) escalateTx(ctx context.Context, tx pgx.Tx, req *models.MovementRequest, subject string) (*models.SupportTicket, error) {
	if e.tickets == nil {
		return nil, nil
	}
	ticket, err := e.tickets.OpenTx(ctx, tx, req.ID, req.UserID, subject)
	if err != nil {
		return nil, err
	}
	if req.TicketID == nil || *req.TicketID != ticket.ID {
		req.TicketID = &ticket.ID
		if err := e.registry.Update(ctx, tx, req); err != nil {
			return nil, err
		}
	}
	return ticket, nil
}
