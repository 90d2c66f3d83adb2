package liquidation

import (
	"context"
	"fmt"

	"github.com/ronda-hq/ronda/internal/platform/db"
)

// Repository persists seizure records.
type Repository struct{}

// NewRepository constructs a Repository.
func NewRepository() *Repository {
	return &Repository{}
}

// InsertProduct records a seized product.
func (r *Repository) InsertProduct(ctx context.Context, q db.Querier, p *LiquidatedProduct) error {
	err := q.QueryRow(ctx, `
		INSERT INTO liquidated_products (order_id, client_id, product_id, name,
			settlement_value, payments_forfeited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`,
		p.OrderID, p.ClientID, p.ProductID, p.Name, p.SettlementValue, p.PaymentsForfeited).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("liquidation: insert product %d: %w", p.ProductID, err)
	}
	return nil
}

// InsertClient records a liquidated client.
func (r *Repository) InsertClient(ctx context.Context, q db.Querier, c *LiquidatedClient) error {
	err := q.QueryRow(ctx, `
		INSERT INTO liquidated_clients (order_id, client_id, total_debt, payments_forfeited,
			forced, liquidated_by, run_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`,
		c.OrderID, c.ClientID, c.TotalDebt, c.PaymentsForfeited, c.Forced, c.LiquidatedBy, c.RunRef).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("liquidation: insert client %d: %w", c.ClientID, err)
	}
	return nil
}
