package payments

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/clients"
	"github.com/ronda-hq/ronda/internal/orders"
	"github.com/ronda-hq/ronda/internal/platform/db"
)

// OrderStore is the ledger access the watcher needs.
type OrderStore interface {
	Get(ctx context.Context, q db.Querier, id int64) (*orders.Order, error)
	GetForUpdate(ctx context.Context, q db.Querier, id int64) (*orders.Order, error)
	InGraceByClientForUpdate(ctx context.Context, q db.Querier, clientID int64) ([]orders.LedgerEntry, error)
	PendingByOrder(ctx context.Context, q db.Querier, orderID int64) ([]orders.LedgerEntry, error)
	MarkEntryPaid(ctx context.Context, q db.Querier, id int64, postPayments decimal.Decimal) error
	CountInGrace(ctx context.Context, q db.Querier, orderID int64) (int, error)
	SetStatus(ctx context.Context, q db.Querier, id int64, status orders.Status) error
	RefreshSummaryCounts(ctx context.Context, q db.Querier, orderID int64) error
}

// ClientStore is the registry access the watcher needs.
type ClientStore interface {
	GetForUpdate(ctx context.Context, q db.Querier, id int64) (*clients.Client, error)
	SetStatus(ctx context.Context, q db.Querier, id int64, status clients.Status) error
}

// Watcher re-evaluates a client's grace-period ledger entries after a
// payment is verified and closes the grace period once every debtor has
// settled.
type Watcher struct {
	orders  OrderStore
	clients ClientStore
	runner  db.Runner
	db      db.Querier
	logger  *slog.Logger
}

// NewWatcher constructs a Watcher. q serves reads outside transactions.
func NewWatcher(orderStore OrderStore, clientStore ClientStore, runner db.Runner, q db.Querier, logger *slog.Logger) *Watcher {
	return &Watcher{
		orders:  orderStore,
		clients: clientStore,
		runner:  runner,
		db:      q,
		logger:  logger,
	}
}

// ResolvePaymentForClient is invoked after any verified payment. Blocked
// (already liquidated) clients are skipped: later payments never un-block
// them. A client back at balance >= 0 has every in-grace entry marked paid,
// becomes active again, and any fully settled order leaves its grace
// period.
func (w *Watcher) ResolvePaymentForClient(ctx context.Context, clientID int64) error {
	return w.runner.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		client, err := w.clients.GetForUpdate(ctx, q, clientID)
		if err != nil {
			return err
		}
		if client.Status == clients.StatusBlocked {
			w.logger.Info("payment resolution skipped for blocked client",
				slog.Int64("client_id", clientID))
			return nil
		}

		entries, err := w.orders.InGraceByClientForUpdate(ctx, q, clientID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if client.Balance.IsNegative() {
			// Partial payment; the debt is still open.
			return nil
		}

		settledOrders := make(map[int64]struct{})
		for _, entry := range entries {
			// Full settlement assumed once the live balance is non-negative.
			if err := w.orders.MarkEntryPaid(ctx, q, entry.ID, entry.BalanceDue); err != nil {
				return err
			}
			settledOrders[entry.OrderID] = struct{}{}
		}

		if client.Status == clients.StatusDebtor {
			if err := w.clients.SetStatus(ctx, q, clientID, clients.StatusActive); err != nil {
				return err
			}
		}

		for orderID := range settledOrders {
			if err := w.settleOrderIfResolved(ctx, q, orderID); err != nil {
				return err
			}
		}
		w.logger.Info("payment resolved",
			slog.Int64("client_id", clientID),
			slog.Int("entries_settled", len(entries)))
		return nil
	})
}

// settleOrderIfResolved closes the grace period when no in-grace entries
// remain, and refreshes the summary counters either way.
func (w *Watcher) settleOrderIfResolved(ctx context.Context, q db.Querier, orderID int64) error {
	remaining, err := w.orders.CountInGrace(ctx, q, orderID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		order, err := w.orders.GetForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}
		if order.Status == orders.StatusGracePeriod {
			if err := w.orders.SetStatus(ctx, q, orderID, orders.StatusClosed); err != nil {
				return err
			}
			w.logger.Info("grace period resolved", slog.Int64("order_id", orderID))
		}
	}
	return w.orders.RefreshSummaryCounts(ctx, q, orderID)
}

// PendingReport is the manual inspection variant: the current in-grace
// entries of an order, without mutating anything.
type PendingReport struct {
	OrderID    int64                `json:"order_id"`
	Pending    []orders.LedgerEntry `json:"pending"`
	AllSettled bool                 `json:"all_settled"`
}

// Pending reports the order's unsettled grace entries.
func (w *Watcher) Pending(ctx context.Context, orderID int64) (*PendingReport, error) {
	if _, err := w.orders.Get(ctx, w.db, orderID); err != nil {
		return nil, err
	}
	entries, err := w.orders.PendingByOrder(ctx, w.db, orderID)
	if err != nil {
		return nil, err
	}
	return &PendingReport{
		OrderID:    orderID,
		Pending:    entries,
		AllSettled: len(entries) == 0,
	}, nil
}
