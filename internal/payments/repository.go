package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/platform/db"
)

// Repository reads the verified-payment boundary. Payment capture and
// verification live upstream; the lifecycle only consumes totals.
type Repository struct{}

// NewRepository constructs a Repository.
func NewRepository() *Repository {
	return &Repository{}
}

// VerifiedTotal sums a client's verified payments within an order.
func (r *Repository) VerifiedTotal(ctx context.Context, q db.Querier, clientID, orderID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE client_id = $1 AND order_id = $2 AND verified`, clientID, orderID).
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("payments: verified total client %d order %d: %w", clientID, orderID, err)
	}
	return total, nil
}
