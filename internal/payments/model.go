package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a client deposit against an order. Only verified payments
// count toward ledger snapshots and balance resolution.
type Payment struct {
	ID         int64           `json:"id" db:"id"`
	ClientID   int64           `json:"client_id" db:"client_id"`
	OrderID    int64           `json:"order_id" db:"order_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Verified   bool            `json:"verified" db:"verified"`
	VerifiedAt *time.Time      `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
