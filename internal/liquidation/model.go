package liquidation

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidatedProduct records one seized product and its settlement value at
// the moment of liquidation.
type LiquidatedProduct struct {
	ID                int64           `json:"id" db:"id"`
	OrderID           int64           `json:"order_id" db:"order_id"`
	ClientID          int64           `json:"client_id" db:"client_id"`
	ProductID         int64           `json:"product_id" db:"product_id"`
	Name              string          `json:"name" db:"name"`
	SettlementValue   decimal.Decimal `json:"settlement_value" db:"settlement_value"`
	PaymentsForfeited decimal.Decimal `json:"payments_forfeited" db:"payments_forfeited"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// LiquidatedClient records the per-client outcome of a liquidation run.
type LiquidatedClient struct {
	ID                int64           `json:"id" db:"id"`
	OrderID           int64           `json:"order_id" db:"order_id"`
	ClientID          int64           `json:"client_id" db:"client_id"`
	TotalDebt         decimal.Decimal `json:"total_debt" db:"total_debt"`
	PaymentsForfeited decimal.Decimal `json:"payments_forfeited" db:"payments_forfeited"`
	Forced            bool            `json:"forced" db:"forced"`
	LiquidatedBy      int64           `json:"liquidated_by" db:"liquidated_by"`
	RunRef            string          `json:"run_ref" db:"run_ref"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// Result reports a liquidation run.
type Result struct {
	Liquidated  []LiquidatedClient `json:"liquidated"`
	OrderClosed bool               `json:"order_closed"`
}
