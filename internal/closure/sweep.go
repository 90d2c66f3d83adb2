package closure

import (
	"context"
	"log/slog"

	"github.com/ronda-hq/ronda/internal/orders"
	"github.com/ronda-hq/ronda/internal/shared"
)

// SweepFailure records a per-order error during an automatic sweep.
type SweepFailure struct {
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// SweepReport summarises an automatic closure run.
type SweepReport struct {
	Closed   []int64        `json:"closed"`
	Failures []SweepFailure `json:"failures,omitempty"`
}

// CloseDue closes every open order whose end date has passed, attributed to
// the system actor. Orders are processed one at a time; a failing order is
// recorded and does not block the rest of the sweep.
func (e *Engine) CloseDue(ctx context.Context) (*SweepReport, error) {
	due, err := e.orders.ListDue(ctx, e.db, e.now())
	if err != nil {
		return nil, err
	}

	report := SweepReport{}
	for _, order := range due {
		if _, err := e.close(ctx, order.ID, shared.ActorSystem, orders.ClosureAutomatic); err != nil {
			e.logger.Error("automatic closure failed",
				slog.Int64("order_id", order.ID),
				slog.Any("error", err))
			report.Failures = append(report.Failures, SweepFailure{OrderID: order.ID, Reason: err.Error()})
			continue
		}
		report.Closed = append(report.Closed, order.ID)
	}
	return &report, nil
}
