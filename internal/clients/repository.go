package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/platform/db"
	"github.com/ronda-hq/ronda/internal/shared"
)

// Repository persists client balance and activity state. Methods take a
// db.Querier so callers can run them on the pool or inside a transaction.
type Repository struct{}

// NewRepository constructs a Repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Get fetches a client by id.
func (r *Repository) Get(ctx context.Context, q db.Querier, id int64) (*Client, error) {
	row := q.QueryRow(ctx, `
		SELECT id, name, balance, status, created_at, updated_at
		FROM clients
		WHERE id = $1`, id)

	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.Balance, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("clients: get %d: %w", id, err)
	}
	return &c, nil
}

// GetForUpdate locks the client row and returns its current state.
func (r *Repository) GetForUpdate(ctx context.Context, q db.Querier, id int64) (*Client, error) {
	row := q.QueryRow(ctx, `
		SELECT id, name, balance, status, created_at, updated_at
		FROM clients
		WHERE id = $1
		FOR UPDATE`, id)

	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.Balance, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("clients: lock %d: %w", id, err)
	}
	return &c, nil
}

// Balance reads the live running balance.
func (r *Repository) Balance(ctx context.Context, q db.Querier, id int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `SELECT balance FROM clients WHERE id = $1`, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("clients: balance %d: %w", id, err)
	}
	return balance, nil
}

// SetStatus updates the activity flag.
func (r *Repository) SetStatus(ctx context.Context, q db.Querier, id int64, status Status) error {
	tag, err := q.Exec(ctx, `
		UPDATE clients SET status = $2, updated_at = NOW()
		WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("clients: set status %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ResetNegativeBalances zeroes every negative balance and returns how many
// clients were forgiven. Credit balances are preserved.
func (r *Repository) ResetNegativeBalances(ctx context.Context, q db.Querier) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE clients SET balance = 0, updated_at = NOW()
		WHERE balance < 0`)
	if err != nil {
		return 0, fmt.Errorf("clients: reset negative balances: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReactivateDebtors flips every debtor back to active. Blocked clients stay
// blocked.
func (r *Repository) ReactivateDebtors(ctx context.Context, q db.Querier) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE clients SET status = $1, updated_at = NOW()
		WHERE status = $2`, StatusActive, StatusDebtor)
	if err != nil {
		return 0, fmt.Errorf("clients: reactivate debtors: %w", err)
	}
	return tag.RowsAffected(), nil
}
