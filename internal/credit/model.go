package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultKind classifies a recorded payment failure.
type DefaultKind string

const (
	KindLatePayment DefaultKind = "late_payment"
	KindNonPayment  DefaultKind = "non_payment"
	KindLiquidation DefaultKind = "liquidation"
)

// DefaultRecord is one append-only default-history row. Records are never
// mutated or deleted.
type DefaultRecord struct {
	ID            int64           `json:"id" db:"id"`
	ClientID      int64           `json:"client_id" db:"client_id"`
	OrderID       int64           `json:"order_id" db:"order_id"`
	Kind          DefaultKind     `json:"kind" db:"kind"`
	AmountOwed    decimal.Decimal `json:"amount_owed" db:"amount_owed"`
	AmountLost    decimal.Decimal `json:"amount_lost" db:"amount_lost"`
	OccurredAt    time.Time       `json:"occurred_at" db:"occurred_at"`
	AffectsCredit bool            `json:"affects_credit" db:"affects_credit"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Classification bands for a 0-100 score.
const (
	ClassExcellent = "excellent"
	ClassGood      = "good"
	ClassFair      = "fair"
	ClassPoor      = "poor"
	ClassVeryPoor  = "very_poor"
)

// Report is the score surface returned to callers.
type Report struct {
	ClientID       int64  `json:"client_id"`
	Score          int    `json:"score"`
	Classification string `json:"classification"`
}

// Eligibility is the participation decision derived from the score.
type Eligibility struct {
	ClientID       int64  `json:"client_id"`
	Eligible       bool   `json:"eligible"`
	Score          int    `json:"score"`
	Classification string `json:"classification"`
	Reason         string `json:"reason,omitempty"`
}
