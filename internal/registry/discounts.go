package registry

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PercentOff resolves an active discount code to its percent-off rate.
// The bool is false when the code does not exist or is inactive.
func (r *Repository) PercentOff(ctx context.Context, code string) (decimal.Decimal, bool, error) {
	var raw string
	err := r.pool.QueryRow(ctx, `
		SELECT percent_off::text FROM discount_codes WHERE code = $1 AND active
	`, code).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	return pct, true, nil
}
