package models

import (
	"time"

	"github.com/google/uuid"
)

// Account holds the per-user balance split. The invariant
// total = available + blocked + invested holds at all times; a withdrawal
// may only debit available.
type Account struct {
	UserID             uuid.UUID `json:"user_id"`
	TotalPaise         int64     `json:"total_paise"`
	AvailablePaise     int64     `json:"available_paise"`
	BlockedPaise       int64     `json:"blocked_paise"`
	InvestedPaise      int64     `json:"invested_paise"`
	WithdrawalsBlocked bool      `json:"withdrawals_blocked"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
