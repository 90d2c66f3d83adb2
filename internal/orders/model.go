package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. The transitions are
// open → closed → grace_period → closed, with an admin-only reopen back to
// open. At most one order may be open and at most one in grace_period.
type Status string

const (
	StatusOpen        Status = "open"
	StatusClosed      Status = "closed"
	StatusGracePeriod Status = "grace_period"
)

// ClosureType records whether an operator or the scheduler closed the order.
type ClosureType string

const (
	ClosureManual    ClosureType = "manual"
	ClosureAutomatic ClosureType = "automatic"
)

// GraceWindow is how long debtors get to settle after closure.
const GraceWindow = 48 * time.Hour

// Order is one consignment-sale round.
type Order struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	StartDate   time.Time       `json:"start_date" db:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty" db:"end_date"`
	TaxRate     decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	Status      Status          `json:"status" db:"status"`
	ClosureType *ClosureType    `json:"closure_type,omitempty" db:"closure_type"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
	ClosedBy    *int64          `json:"closed_by,omitempty" db:"closed_by"`
	CreatedBy   int64           `json:"created_by" db:"created_by"`
	DeletedAt   *time.Time      `json:"-" db:"deleted_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// PaymentStatus is the per-round settlement state of a client.
type PaymentStatus string

const (
	PaymentActive     PaymentStatus = "active"
	PaymentInGrace    PaymentStatus = "in_grace"
	PaymentPaid       PaymentStatus = "paid"
	PaymentLiquidated PaymentStatus = "liquidated"
)

// LedgerEntry is the per-(client, order) settlement record written at
// closure. BalanceDue is the absolute value of the client's debt at that
// moment, zero when the client owed nothing.
type LedgerEntry struct {
	ID                  int64           `json:"id" db:"id"`
	ClientID            int64           `json:"client_id" db:"client_id"`
	OrderID             int64           `json:"order_id" db:"order_id"`
	TotalPurchases      decimal.Decimal `json:"total_purchases" db:"total_purchases"`
	TotalPayments       decimal.Decimal `json:"total_payments" db:"total_payments"`
	BalanceDue          decimal.Decimal `json:"balance_due" db:"balance_due"`
	PaymentStatus       PaymentStatus   `json:"payment_status" db:"payment_status"`
	ClosedAt            *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
	PaymentDeadline     *time.Time      `json:"payment_deadline,omitempty" db:"payment_deadline"`
	PostClosurePayments decimal.Decimal `json:"post_closure_payments" db:"post_closure_payments"`
	Notes               string          `json:"notes,omitempty" db:"notes"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// ClosureSummary is the financial snapshot of an order at closure, adjusted
// incrementally as grace-period clients pay or get liquidated.
type ClosureSummary struct {
	OrderID           int64           `json:"order_id" db:"order_id"`
	Subtotal          decimal.Decimal `json:"subtotal" db:"subtotal"`
	TaxAmount         decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	CommissionTotal   decimal.Decimal `json:"commission_total" db:"commission_total"`
	GrandTotal        decimal.Decimal `json:"grand_total" db:"grand_total"`
	ClientsTotal      int             `json:"clients_total" db:"clients_total"`
	ClientsPaid       int             `json:"clients_paid" db:"clients_paid"`
	ClientsPending    int             `json:"clients_pending" db:"clients_pending"`
	ClientsLiquidated int             `json:"clients_liquidated" db:"clients_liquidated"`
	ClosedAt          time.Time       `json:"closed_at" db:"closed_at"`
	PaymentDeadline   *time.Time      `json:"payment_deadline,omitempty" db:"payment_deadline"`
	ClosureType       ClosureType     `json:"closure_type" db:"closure_type"`
}

// ClosureStamp records who closed an order, when, and how.
type ClosureStamp struct {
	ClosedAt time.Time
	ClosedBy int64
	Type     ClosureType
}

// OrderDetails is the read model returned by the detail endpoint.
type OrderDetails struct {
	Order   Order           `json:"order"`
	Ledger  []LedgerEntry   `json:"ledger,omitempty"`
	Summary *ClosureSummary `json:"summary,omitempty"`
}
