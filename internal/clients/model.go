package clients

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the client activity flag derived by the round lifecycle.
type Status string

const (
	StatusActive  Status = "active"
	StatusDebtor  Status = "debtor"
	StatusBlocked Status = "blocked"
)

// Client is the subset of the registry the round lifecycle reads and writes.
// Balance is a signed running total: purchases subtract, verified payments
// add, so a negative balance means outstanding debt.
type Client struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Status    Status          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
