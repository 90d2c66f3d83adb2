package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/platform/db"
)

// Repository reads the product catalog boundary. The lifecycle engines only
// consume active, non-deleted products; catalog CRUD lives upstream.
type Repository struct{}

// NewRepository constructs a Repository.
func NewRepository() *Repository {
	return &Repository{}
}

// ActiveClientIDs lists clients holding at least one active product in the
// order, ordered for deterministic processing.
func (r *Repository) ActiveClientIDs(ctx context.Context, q db.Querier, orderID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `
		SELECT DISTINCT client_id
		FROM products
		WHERE order_id = $1 AND is_active AND deleted_at IS NULL
		ORDER BY client_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("catalog: active clients for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListActive returns a client's active products in an order.
func (r *Repository) ListActive(ctx context.Context, q db.Querier, clientID, orderID int64) ([]Product, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, client_id, name, unit_price, quantity, commission, is_active, created_at
		FROM products
		WHERE order_id = $1 AND client_id = $2 AND is_active AND deleted_at IS NULL
		ORDER BY id`, orderID, clientID)
	if err != nil {
		return nil, fmt.Errorf("catalog: products for client %d order %d: %w", clientID, orderID, err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.OrderID, &p.ClientID, &p.Name, &p.UnitPrice, &p.Quantity, &p.Commission, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// OrderTotals aggregates subtotal and commission over the order's active
// products.
func (r *Repository) OrderTotals(ctx context.Context, q db.Querier, orderID int64) (OrderTotals, error) {
	var totals OrderTotals
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(unit_price * quantity), 0), COALESCE(SUM(commission), 0)
		FROM products
		WHERE order_id = $1 AND is_active AND deleted_at IS NULL`, orderID).
		Scan(&totals.Subtotal, &totals.Commission)
	if err != nil {
		return OrderTotals{}, fmt.Errorf("catalog: totals for order %d: %w", orderID, err)
	}
	return totals, nil
}

// PurchaseTotal is the settlement-valued sum of a client's active products
// in the order, matching the debit applied when each product was created.
func (r *Repository) PurchaseTotal(ctx context.Context, q db.Querier, clientID, orderID int64, taxRate decimal.Decimal) (decimal.Decimal, error) {
	products, err := r.ListActive(ctx, q, clientID, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.SettlementValue(taxRate))
	}
	return total, nil
}
