package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rupeevault/backend/internal/models"
)

// ErrNotFound is returned when no request exists for the given id.
var ErrNotFound = errors.New("request not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, user_id, kind, status, amount_paise, bank_account, ifsc, account_holder,
	payment_method, discount_code, final_amount_paise, processing_start, processing_end,
	attempts, transaction_ref, ticket_id, blocked, created_at, updated_at`

func scanRequest(row pgx.Row) (*models.MovementRequest, error) {
	var m models.MovementRequest
	var bankAccount, ifsc, accountHolder, paymentMethod, discountCode *string
	err := row.Scan(&m.ID, &m.UserID, &m.Kind, &m.Status, &m.AmountPaise, &bankAccount, &ifsc, &accountHolder,
		&paymentMethod, &discountCode, &m.FinalAmountPaise, &m.ProcessingStart, &m.ProcessingEnd,
		&m.Attempts, &m.TransactionRef, &m.TicketID, &m.Blocked, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if bankAccount != nil {
		m.BankAccount = *bankAccount
	}
	if ifsc != nil {
		m.IFSC = *ifsc
	}
	if accountHolder != nil {
		m.AccountHolder = *accountHolder
	}
	if paymentMethod != nil {
		m.PaymentMethod = *paymentMethod
	}
	if discountCode != nil {
		m.DiscountCode = *discountCode
	}
	return &m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, m *models.MovementRequest) error {
	return tx.QueryRow(ctx, `
		INSERT INTO movement_requests (id, user_id, kind, status, amount_paise, bank_account, ifsc, account_holder,
			payment_method, discount_code, final_amount_paise, attempts, blocked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, m.ID, m.UserID, m.Kind, m.Status, m.AmountPaise, nullable(m.BankAccount), nullable(m.IFSC), nullable(m.AccountHolder),
		nullable(m.PaymentMethod), nullable(m.DiscountCode), m.FinalAmountPaise, m.Attempts, m.Blocked,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.MovementRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM movement_requests WHERE id = $1
	`, id))
}

// GetForUpdate locks the request row so concurrent transitions on the same
// request serialize at the database as well as in process.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.MovementRequest, error) {
	return scanRequest(tx.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM movement_requests WHERE id = $1 FOR UPDATE
	`, id))
}

// Update writes the mutable lifecycle fields. Identity and creation input
// fields are never rewritten.
func (r *Repository) Update(ctx context.Context, tx pgx.Tx, m *models.MovementRequest) error {
	_, err := tx.Exec(ctx, `
		UPDATE movement_requests
		SET status = $2, processing_start = $3, processing_end = $4, attempts = $5,
			transaction_ref = $6, ticket_id = $7, blocked = $8, updated_at = now()
		WHERE id = $1
	`, m.ID, m.Status, m.ProcessingStart, m.ProcessingEnd, m.Attempts, m.TransactionRef, m.TicketID, m.Blocked)
	return err
}

// AppendTransition appends to the status history. Rows are insert-only.
func (r *Repository) AppendTransition(ctx context.Context, tx pgx.Tx, t *models.Transition) error {
	return tx.QueryRow(ctx, `
		INSERT INTO request_transitions (request_id, from_status, to_status, actor, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, t.RequestID, t.From, t.To, t.Actor, nullable(t.Reason)).Scan(&t.ID, &t.At)
}

func (r *Repository) ListTransitions(ctx context.Context, requestID uuid.UUID) ([]models.Transition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, from_status, to_status, actor, COALESCE(reason, ''), created_at
		FROM request_transitions WHERE request_id = $1 ORDER BY id
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Transition
	for rows.Next() {
		var t models.Transition
		if err := rows.Scan(&t.ID, &t.RequestID, &t.From, &t.To, &t.Actor, &t.Reason, &t.At); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.MovementRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM movement_requests WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.MovementRequest
	for rows.Next() {
		m, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ListProcessing returns every request currently in processing, for the
// timer rescan at startup.
func (r *Repository) ListProcessing(ctx context.Context) ([]*models.MovementRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM movement_requests WHERE status = 'processing' ORDER BY processing_end
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.MovementRequest
	for rows.Next() {
		m, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
