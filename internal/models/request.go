package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestKind string

const (
	KindDeposit    RequestKind = "deposit"
	KindWithdrawal RequestKind = "withdrawal"
)

type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusHeld       RequestStatus = "held"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
	StatusRejected   RequestStatus = "rejected"
)

// Terminal reports whether no further transition is possible from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// MovementRequest is the full record of a deposit or withdrawal request.
// Identity is immutable after creation; only the lifecycle engine moves
// Status and appends to the transition log.
type MovementRequest struct {
	ID     uuid.UUID     `json:"id"`
	UserID uuid.UUID     `json:"user_id"`
	Kind   RequestKind   `json:"kind"`
	Status RequestStatus `json:"status"`

	AmountPaise int64 `json:"amount_paise"`

	// Withdrawal destination.
	BankAccount   string `json:"bank_account,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`

	// Deposit details. FinalAmountPaise is the amount credited after any
	// discount; for withdrawals it equals AmountPaise.
	PaymentMethod    string `json:"payment_method,omitempty"`
	DiscountCode     string `json:"discount_code,omitempty"`
	FinalAmountPaise int64  `json:"final_amount_paise"`

	ProcessingStart *time.Time `json:"processing_start,omitempty"`
	ProcessingEnd   *time.Time `json:"processing_end,omitempty"`

	Attempts       int        `json:"attempts"`
	TransactionRef *string    `json:"transaction_ref,omitempty"`
	TicketID       *uuid.UUID `json:"ticket_id,omitempty"`
	Blocked        bool       `json:"blocked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition is one entry of a request's append-only status history.
type Transition struct {
	ID        int64         `json:"id"`
	RequestID uuid.UUID     `json:"request_id"`
	From      RequestStatus `json:"from"`
	To        RequestStatus `json:"to"`
	Actor     string        `json:"actor"`
	Reason    string        `json:"reason,omitempty"`
	At        time.Time     `json:"at"`
}

// SubmitWithdrawalInput is the creation shape for a withdrawal: destination
// bank details only. The full MovementRequest is the record projection.
type SubmitWithdrawalInput struct {
	AmountPaise   int64
	BankAccount   string
	IFSC          string
	AccountHolder string
}

// SubmitDepositInput is the creation shape for a deposit.
type SubmitDepositInput struct {
	AmountPaise   int64
	PaymentMethod string
	DiscountCode  string
}
