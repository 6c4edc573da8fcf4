package escalation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/rupeevault/backend/internal/models"
)

// Service bridges failed or contested requests to human support. Tickets
// and requests are independent entities linked only by reference: closing a
// ticket never changes the request's state.
type Service interface {
	OpenTx(ctx context.Context, tx pgx.Tx, requestID, userID uuid.UUID, subject string) (*models.SupportTicket, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error)
	Close(ctx context.Context, id uuid.UUID) error
	AppendMessage(ctx context.Context, ticketID, authorID uuid.UUID, authorRole, body string) (*models.TicketMessage, error)
	ListMessages(ctx context.Context, ticketID uuid.UUID) ([]models.TicketMessage, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

// OpenTx opens a ticket for the request, or returns the one already open.
// The partial unique index on (request_id) WHERE open backs the at-most-one
// constraint under concurrency.
func (s *service) OpenTx(ctx context.Context, tx pgx.Tx, requestID, userID uuid.UUID, subject string) (*models.SupportTicket, error) {
	existing, err := s.repo.GetOpenByRequestTx(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	t := &models.SupportTicket{
		ID:        uuid.New(),
		Reference: "TKT-" + ulid.Make().String(),
		RequestID: requestID,
		UserID:    userID,
		Subject:   subject,
		Status:    models.TicketOpen,
	}
	if err := s.repo.CreateTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Close(ctx context.Context, id uuid.UUID) error {
	return s.repo.Close(ctx, id)
}

func (s *service) AppendMessage(ctx context.Context, ticketID, authorID uuid.UUID, authorRole, body string) (*models.TicketMessage, error) {
	m := &models.TicketMessage{
		TicketID:   ticketID,
		AuthorID:   authorID,
		AuthorRole: authorRole,
		Body:       body,
	}
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *service) ListMessages(ctx context.Context, ticketID uuid.UUID) ([]models.TicketMessage, error) {
	return s.repo.ListMessages(ctx, ticketID)
}
