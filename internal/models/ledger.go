package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry_type values.
const (
	EntryWithdrawalSettlement = "withdrawal_settlement"
	EntryDepositCredit        = "deposit_credit"
	EntryFee                  = "fee"
)

// LedgerEntry is an immutable transaction record, written exactly once when
// a request completes or a fee is applied. Never mutated after creation.
type LedgerEntry struct {
	ID                uuid.UUID  `json:"id"`
	Reference         string     `json:"reference"`
	UserID            uuid.UUID  `json:"user_id"`
	RequestID         *uuid.UUID `json:"request_id,omitempty"`
	EntryType         string     `json:"entry_type"`
	AmountPaise       int64      `json:"amount_paise"`
	BalanceAfterPaise int64      `json:"balance_after_paise"`
	CreatedAt         time.Time  `json:"created_at"`
}
