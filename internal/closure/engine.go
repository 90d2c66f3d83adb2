// Package closure orchestrates the open → closed → grace_period transition
// of a consignment round, computing each client's settlement outcome inside
// one transaction.
package closure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/catalog"
	"github.com/ronda-hq/ronda/internal/clients"
	"github.com/ronda-hq/ronda/internal/orders"
	"github.com/ronda-hq/ronda/internal/platform/db"
	"github.com/ronda-hq/ronda/internal/shared"
)

// OrderStore is the order/ledger/summary access the engine needs.
type OrderStore interface {
	GetForUpdate(ctx context.Context, q db.Querier, id int64) (*orders.Order, error)
	MarkClosed(ctx context.Context, q db.Querier, id int64, stamp orders.ClosureStamp) error
	SetStatus(ctx context.Context, q db.Querier, id int64, status orders.Status) error
	UpsertLedgerEntry(ctx context.Context, q db.Querier, e *orders.LedgerEntry) error
	UpsertSummary(ctx context.Context, q db.Querier, s *orders.ClosureSummary) error
	ListDue(ctx context.Context, q db.Querier, now time.Time) ([]orders.Order, error)
}

// ClientStore is the client-registry access the engine needs.
type ClientStore interface {
	GetForUpdate(ctx context.Context, q db.Querier, id int64) (*clients.Client, error)
	SetStatus(ctx context.Context, q db.Querier, id int64, status clients.Status) error
}

// Catalog is the product boundary the engine reads.
type Catalog interface {
	ActiveClientIDs(ctx context.Context, q db.Querier, orderID int64) ([]int64, error)
	PurchaseTotal(ctx context.Context, q db.Querier, clientID, orderID int64, taxRate decimal.Decimal) (decimal.Decimal, error)
	OrderTotals(ctx context.Context, q db.Querier, orderID int64) (catalog.OrderTotals, error)
}

// Payments is the verified-payment boundary the engine reads.
type Payments interface {
	VerifiedTotal(ctx context.Context, q db.Querier, clientID, orderID int64) (decimal.Decimal, error)
}

// Result reports what a closure produced.
type Result struct {
	Order        orders.Order          `json:"order"`
	Summary      orders.ClosureSummary `json:"summary"`
	Entries      []orders.LedgerEntry  `json:"entries"`
	GraceEntered bool                  `json:"grace_entered"`
}

// Engine closes orders.
type Engine struct {
	orders      OrderStore
	clients     ClientStore
	catalog     Catalog
	payments    Payments
	runner      db.Runner
	db          db.Querier
	logger      *slog.Logger
	graceWindow time.Duration
	now         func() time.Time
}

// NewEngine constructs an Engine. q serves reads outside transactions.
func NewEngine(orderStore OrderStore, clientStore ClientStore, catalog Catalog, payments Payments, runner db.Runner, q db.Querier, logger *slog.Logger) *Engine {
	return &Engine{
		orders:      orderStore,
		clients:     clientStore,
		catalog:     catalog,
		payments:    payments,
		runner:      runner,
		db:          q,
		logger:      logger,
		graceWindow: orders.GraceWindow,
		now:         time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// WithGraceWindow overrides the 48h debtor window.
func (e *Engine) WithGraceWindow(d time.Duration) {
	if d > 0 {
		e.graceWindow = d
	}
}

// CloseOrder closes an open order on behalf of an operator.
func (e *Engine) CloseOrder(ctx context.Context, orderID, actorID int64) (*Result, error) {
	return e.close(ctx, orderID, actorID, orders.ClosureManual)
}

// close runs the whole transition in one transaction: a failure at any step
// rolls back order state, ledger, and summary together.
func (e *Engine) close(ctx context.Context, orderID, actorID int64, ctype orders.ClosureType) (*Result, error) {
	var result Result
	err := e.runner.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		order, err := e.orders.GetForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}
		if order.Status != orders.StatusOpen {
			return shared.ErrAlreadyClosed
		}

		now := e.now()
		deadline := now.Add(e.graceWindow)
		stamp := orders.ClosureStamp{ClosedAt: now, ClosedBy: actorID, Type: ctype}
		if err := e.orders.MarkClosed(ctx, q, orderID, stamp); err != nil {
			return err
		}

		clientIDs, err := e.catalog.ActiveClientIDs(ctx, q, orderID)
		if err != nil {
			return err
		}

		var paid, pending int
		entries := make([]orders.LedgerEntry, 0, len(clientIDs))
		for _, clientID := range clientIDs {
			entry, err := e.settleClient(ctx, q, order, clientID, now, deadline)
			if err != nil {
				return err
			}
			if entry.PaymentStatus == orders.PaymentInGrace {
				pending++
			} else {
				paid++
			}
			entries = append(entries, *entry)
		}

		summary, err := e.buildSummary(ctx, q, order, now, deadline, len(clientIDs), paid, pending, ctype)
		if err != nil {
			return err
		}
		if err := e.orders.UpsertSummary(ctx, q, summary); err != nil {
			return err
		}

		order.Status = orders.StatusClosed
		order.ClosedAt = &now
		order.ClosedBy = &actorID
		order.ClosureType = &ctype
		if pending > 0 {
			if err := e.orders.SetStatus(ctx, q, orderID, orders.StatusGracePeriod); err != nil {
				return err
			}
			order.Status = orders.StatusGracePeriod
			result.GraceEntered = true
		}

		result.Order = *order
		result.Summary = *summary
		result.Entries = entries
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("order closed",
		slog.Int64("order_id", orderID),
		slog.Int64("actor_id", actorID),
		slog.String("closure_type", string(ctype)),
		slog.Int("clients", result.Summary.ClientsTotal),
		slog.Int("pending", result.Summary.ClientsPending),
		slog.Bool("grace_entered", result.GraceEntered))
	return &result, nil
}

// settleClient snapshots one client's purchases and payments for the round
// and decides the grace outcome against the live balance.
func (e *Engine) settleClient(ctx context.Context, q db.Querier, order *orders.Order, clientID int64, now, deadline time.Time) (*orders.LedgerEntry, error) {
	purchases, err := e.catalog.PurchaseTotal(ctx, q, clientID, order.ID, order.TaxRate)
	if err != nil {
		return nil, err
	}
	paymentsTotal, err := e.payments.VerifiedTotal(ctx, q, clientID, order.ID)
	if err != nil {
		return nil, err
	}
	client, err := e.clients.GetForUpdate(ctx, q, clientID)
	if err != nil {
		return nil, fmt.Errorf("closure: client %d: %w", clientID, err)
	}

	entry := orders.LedgerEntry{
		ClientID:            clientID,
		OrderID:             order.ID,
		TotalPurchases:      purchases,
		TotalPayments:       paymentsTotal,
		BalanceDue:          decimal.Zero,
		PaymentStatus:       orders.PaymentPaid,
		ClosedAt:            &now,
		PostClosurePayments: decimal.Zero,
	}
	if client.Balance.IsNegative() {
		entry.PaymentStatus = orders.PaymentInGrace
		entry.BalanceDue = client.Balance.Abs()
		d := deadline
		entry.PaymentDeadline = &d
		if err := e.clients.SetStatus(ctx, q, clientID, clients.StatusDebtor); err != nil {
			return nil, err
		}
	}

	if err := e.orders.UpsertLedgerEntry(ctx, q, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (e *Engine) buildSummary(ctx context.Context, q db.Querier, order *orders.Order, now, deadline time.Time, total, paid, pending int, ctype orders.ClosureType) (*orders.ClosureSummary, error) {
	totals, err := e.catalog.OrderTotals(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}
	tax := totals.Subtotal.Mul(order.TaxRate)
	summary := orders.ClosureSummary{
		OrderID:         order.ID,
		Subtotal:        totals.Subtotal,
		TaxAmount:       tax,
		CommissionTotal: totals.Commission,
		GrandTotal:      totals.Subtotal.Add(tax).Add(totals.Commission),
		ClientsTotal:    total,
		ClientsPaid:     paid,
		ClientsPending:  pending,
		ClosedAt:        now,
		ClosureType:     ctype,
	}
	if pending > 0 {
		d := deadline
		summary.PaymentDeadline = &d
	}
	return &summary, nil
}
