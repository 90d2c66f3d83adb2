package credit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ronda-hq/ronda/internal/platform/db"
)

// Repository persists default-history rows. The table is append-only.
type Repository struct{}

// NewRepository constructs a Repository.
func NewRepository() *Repository {
	return &Repository{}
}

// InsertDefault appends a default record.
func (r *Repository) InsertDefault(ctx context.Context, q db.Querier, rec *DefaultRecord) error {
	err := q.QueryRow(ctx, `
		INSERT INTO default_records (client_id, order_id, kind, amount_owed, amount_lost,
			occurred_at, affects_credit, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id`,
		rec.ClientID, rec.OrderID, rec.Kind, rec.AmountOwed, rec.AmountLost,
		rec.OccurredAt, rec.AffectsCredit, rec.Notes).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("credit: insert default client %d: %w", rec.ClientID, err)
	}
	return nil
}

// ListByClient returns a client's full default history, newest first.
func (r *Repository) ListByClient(ctx context.Context, q db.Querier, clientID int64) ([]DefaultRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT id, client_id, order_id, kind, amount_owed, amount_lost,
			occurred_at, affects_credit, notes, created_at
		FROM default_records
		WHERE client_id = $1
		ORDER BY occurred_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("credit: list defaults client %d: %w", clientID, err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// AffectingByClient returns the records that count against the score,
// newest first.
func (r *Repository) AffectingByClient(ctx context.Context, q db.Querier, clientID int64) ([]DefaultRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT id, client_id, order_id, kind, amount_owed, amount_lost,
			occurred_at, affects_credit, notes, created_at
		FROM default_records
		WHERE client_id = $1 AND affects_credit
		ORDER BY occurred_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("credit: affecting defaults client %d: %w", clientID, err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]DefaultRecord, error) {
	var out []DefaultRecord
	for rows.Next() {
		var rec DefaultRecord
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.OrderID, &rec.Kind, &rec.AmountOwed,
			&rec.AmountLost, &rec.OccurredAt, &rec.AffectsCredit, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
