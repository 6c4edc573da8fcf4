package escalation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rupeevault/backend/internal/models"
)

var ErrNotFound = errors.New("ticket not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ticketColumns = `id, reference, request_id, user_id, subject, status, created_at, closed_at`

func scanTicket(row pgx.Row) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := row.Scan(&t.ID, &t.Reference, &t.RequestID, &t.UserID, &t.Subject, &t.Status, &t.CreatedAt, &t.ClosedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, t *models.SupportTicket) error {
	return tx.QueryRow(ctx, `
		INSERT INTO support_tickets (id, reference, request_id, user_id, subject, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, t.ID, t.Reference, t.RequestID, t.UserID, t.Subject, t.Status).Scan(&t.CreatedAt)
}

// GetOpenByRequestTx returns the request's open ticket, or nil if none.
func (r *Repository) GetOpenByRequestTx(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) (*models.SupportTicket, error) {
	t, err := scanTicket(tx.QueryRow(ctx, `
		SELECT `+ticketColumns+` FROM support_tickets WHERE request_id = $1 AND status = 'open'
	`, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *Repository) Close(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE support_tickets SET status = 'closed', closed_at = now() WHERE id = $1 AND status = 'open'
	`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) AppendMessage(ctx context.Context, m *models.TicketMessage) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO ticket_messages (ticket_id, author_id, author_role, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.TicketID, m.AuthorID, m.AuthorRole, m.Body).Scan(&m.ID, &m.CreatedAt)
}

func (r *Repository) ListMessages(ctx context.Context, ticketID uuid.UUID) ([]models.TicketMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ticket_id, author_id, author_role, body, created_at
		FROM ticket_messages WHERE ticket_id = $1 ORDER BY id
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TicketMessage
	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.AuthorRole, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
