// Package liquidation seizes the goods of grace-period clients who failed
// to settle, records the default, and blocks them from future rounds.
package liquidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ronda-hq/ronda/internal/catalog"
	"github.com/ronda-hq/ronda/internal/clients"
	"github.com/ronda-hq/ronda/internal/credit"
	"github.com/ronda-hq/ronda/internal/orders"
	"github.com/ronda-hq/ronda/internal/platform/db"
)

// OrderStore is the order/ledger/summary access the engine needs.
type OrderStore interface {
	GetForUpdate(ctx context.Context, q db.Querier, id int64) (*orders.Order, error)
	InGraceByOrderForUpdate(ctx context.Context, q db.Querier, orderID int64) ([]orders.LedgerEntry, error)
	MarkEntryLiquidated(ctx context.Context, q db.Querier, id int64, notes string) error
	AdjustSummaryOnLiquidation(ctx context.Context, q db.Querier, orderID int64, count int) error
	CountInGrace(ctx context.Context, q db.Querier, orderID int64) (int, error)
	SetStatus(ctx context.Context, q db.Querier, id int64, status orders.Status) error
	ListGraceExpired(ctx context.Context, q db.Querier, now time.Time) ([]orders.Order, error)
}

// ClientStore is the client-registry access the engine needs.
type ClientStore interface {
	SetStatus(ctx context.Context, q db.Querier, id int64, status clients.Status) error
}

// Catalog lists the products to seize.
type Catalog interface {
	ListActive(ctx context.Context, q db.Querier, clientID, orderID int64) ([]catalog.Product, error)
}

// SeizureStore persists liquidation rows.
type SeizureStore interface {
	InsertProduct(ctx context.Context, q db.Querier, p *LiquidatedProduct) error
	InsertClient(ctx context.Context, q db.Querier, c *LiquidatedClient) error
}

// DefaultStore appends default-history rows.
type DefaultStore interface {
	InsertDefault(ctx context.Context, q db.Querier, rec *credit.DefaultRecord) error
}

// ScoreInvalidator drops cached credit scores once a default is recorded.
type ScoreInvalidator interface {
	Invalidate(ctx context.Context, clientID int64)
}

// Engine liquidates delinquent clients.
type Engine struct {
	orders   OrderStore
	clients  ClientStore
	catalog  Catalog
	seizures SeizureStore
	defaults DefaultStore
	scores   ScoreInvalidator
	runner   db.Runner
	db       db.Querier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine constructs an Engine. scores may be nil.
func NewEngine(orderStore OrderStore, clientStore ClientStore, cat Catalog, seizures SeizureStore, defaults DefaultStore, scores ScoreInvalidator, runner db.Runner, q db.Querier, logger *slog.Logger) *Engine {
	return &Engine{
		orders:   orderStore,
		clients:  clientStore,
		catalog:  cat,
		seizures: seizures,
		defaults: defaults,
		scores:   scores,
		runner:   runner,
		db:       q,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// LiquidateDelinquents seizes the goods of every in-grace client with
// outstanding debt whose deadline has passed; force liquidates regardless
// of deadline. The whole run commits or rolls back as one transaction.
func (e *Engine) LiquidateDelinquents(ctx context.Context, orderID, actorID int64, force bool) (*Result, error) {
	runRef := uuid.NewString()
	var result Result
	var touched []int64

	err := e.runner.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		order, err := e.orders.GetForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}
		entries, err := e.orders.InGraceByOrderForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}

		now := e.now()
		for _, entry := range entries {
			if !entry.BalanceDue.IsPositive() {
				continue
			}
			expired := entry.PaymentDeadline != nil && !entry.PaymentDeadline.After(now)
			if !force && !expired {
				continue
			}
			lc, err := e.liquidateClient(ctx, q, order, entry, actorID, force && !expired, runRef, now)
			if err != nil {
				return err
			}
			result.Liquidated = append(result.Liquidated, *lc)
			touched = append(touched, entry.ClientID)
		}

		if len(result.Liquidated) > 0 {
			if err := e.orders.AdjustSummaryOnLiquidation(ctx, q, orderID, len(result.Liquidated)); err != nil {
				return err
			}
		}

		remaining, err := e.orders.CountInGrace(ctx, q, orderID)
		if err != nil {
			return err
		}
		if remaining == 0 && order.Status == orders.StatusGracePeriod {
			if err := e.orders.SetStatus(ctx, q, orderID, orders.StatusClosed); err != nil {
				return err
			}
			result.OrderClosed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, clientID := range touched {
		if e.scores != nil {
			e.scores.Invalidate(ctx, clientID)
		}
	}
	e.logger.Info("liquidation run finished",
		slog.Int64("order_id", orderID),
		slog.Int64("actor_id", actorID),
		slog.Bool("force", force),
		slog.String("run_ref", runRef),
		slog.Int("liquidated", len(result.Liquidated)),
		slog.Bool("order_closed", result.OrderClosed))
	return &result, nil
}

// liquidateClient seizes one client's goods: settlement-valued product
// entries, a client seizure row, a default-history row, the ledger flip to
// liquidated, and the registry block.
func (e *Engine) liquidateClient(ctx context.Context, q db.Querier, order *orders.Order, entry orders.LedgerEntry, actorID int64, forced bool, runRef string, now time.Time) (*LiquidatedClient, error) {
	products, err := e.catalog.ListActive(ctx, q, entry.ClientID, order.ID)
	if err != nil {
		return nil, err
	}

	// Observed behaviour: forfeited payments are split evenly by product
	// count, not by value share.
	forfeited := entry.TotalPayments
	parts := splitEvenly(forfeited, len(products))
	for i, p := range products {
		lp := LiquidatedProduct{
			OrderID:           order.ID,
			ClientID:          entry.ClientID,
			ProductID:         p.ID,
			Name:              p.Name,
			SettlementValue:   p.SettlementValue(order.TaxRate),
			PaymentsForfeited: parts[i],
		}
		if err := e.seizures.InsertProduct(ctx, q, &lp); err != nil {
			return nil, err
		}
	}

	lc := LiquidatedClient{
		OrderID:           order.ID,
		ClientID:          entry.ClientID,
		TotalDebt:         entry.BalanceDue,
		PaymentsForfeited: forfeited,
		Forced:            forced,
		LiquidatedBy:      actorID,
		RunRef:            runRef,
	}
	if err := e.seizures.InsertClient(ctx, q, &lc); err != nil {
		return nil, err
	}

	observation := fmt.Sprintf("liquidated automatically after deadline (run %s)", runRef)
	if forced {
		observation = fmt.Sprintf("forced liquidation before deadline (run %s)", runRef)
	}
	if err := e.defaults.InsertDefault(ctx, q, &credit.DefaultRecord{
		ClientID:      entry.ClientID,
		OrderID:       order.ID,
		Kind:          credit.KindLiquidation,
		AmountOwed:    entry.BalanceDue,
		AmountLost:    forfeited,
		OccurredAt:    now,
		AffectsCredit: true,
		Notes:         observation,
	}); err != nil {
		return nil, err
	}

	if err := e.orders.MarkEntryLiquidated(ctx, q, entry.ID, observation); err != nil {
		return nil, err
	}
	if err := e.clients.SetStatus(ctx, q, entry.ClientID, clients.StatusBlocked); err != nil {
		return nil, err
	}
	return &lc, nil
}

// splitEvenly divides total into n two-decimal parts that sum back to
// total; any remainder cents land on the first part.
func splitEvenly(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	parts := make([]decimal.Decimal, n)
	base := total.DivRound(decimal.NewFromInt(int64(n)), 2)
	sum := decimal.Zero
	for i := 1; i < n; i++ {
		parts[i] = base
		sum = sum.Add(base)
	}
	parts[0] = total.Sub(sum)
	return parts
}
