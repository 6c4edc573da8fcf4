package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TicketOpen   = "open"
	TicketClosed = "closed"
)

// SupportTicket links a movement request to a human-support escalation.
// At most one open ticket exists per request; closing a ticket never
// changes the request state.
type SupportTicket struct {
	ID        uuid.UUID  `json:"id"`
	Reference string     `json:"reference"`
	RequestID uuid.UUID  `json:"request_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Subject   string     `json:"subject"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type TicketMessage struct {
	ID         int64     `json:"id"`
	TicketID   uuid.UUID `json:"ticket_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorRole string    `json:"author_role"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
