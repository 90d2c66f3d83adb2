package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is an item a client took on consignment within an order.
type Product struct {
	ID         int64           `json:"id" db:"id"`
	OrderID    int64           `json:"order_id" db:"order_id"`
	ClientID   int64           `json:"client_id" db:"client_id"`
	Name       string          `json:"name" db:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
	Commission decimal.Decimal `json:"commission" db:"commission"`
	IsActive   bool            `json:"is_active" db:"is_active"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// SettlementValue prices the product the same way purchase debits are
// computed at creation: (unit_price × quantity) × (1 + tax_rate) + commission.
func (p Product) SettlementValue(taxRate decimal.Decimal) decimal.Decimal {
	gross := p.UnitPrice.Mul(p.Quantity)
	return gross.Mul(decimal.NewFromInt(1).Add(taxRate)).Add(p.Commission)
}

// OrderTotals aggregates the order-level figures the closure summary needs.
// Tax is applied by the caller from the order's own rate.
type OrderTotals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Commission decimal.Decimal `json:"commission"`
}
