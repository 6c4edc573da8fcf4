package models

import (
	"time"

	"github.com/google/uuid"
)

type UnholdStatus string

const (
	UnholdPending  UnholdStatus = "pending"
	UnholdApproved UnholdStatus = "approved"
	UnholdRejected UnholdStatus = "rejected"
)

// UnholdRequest asks to lift an account-level withdrawal hold. At most one
// pending unhold request exists per user.
type UnholdRequest struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Status    UnholdStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	DecidedBy *string      `json:"decided_by,omitempty"`
	DecidedAt *time.Time   `json:"decided_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
