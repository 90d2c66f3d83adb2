package liquidation

import (
	"context"
	"log/slog"

	"github.com/ronda-hq/ronda/internal/shared"
)

// SweepFailure records a per-order error during an automatic sweep.
type SweepFailure struct {
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// SweepReport summarises an automatic liquidation run.
type SweepReport struct {
	Processed  []int64        `json:"processed"`
	Liquidated int            `json:"liquidated"`
	Failures   []SweepFailure `json:"failures,omitempty"`
}

// LiquidateOverdue runs a non-forced liquidation over every grace-period
// order whose deadline has elapsed. Failures are isolated per order.
func (e *Engine) LiquidateOverdue(ctx context.Context) (*SweepReport, error) {
	expired, err := e.orders.ListGraceExpired(ctx, e.db, e.now())
	if err != nil {
		return nil, err
	}

	report := SweepReport{}
	for _, order := range expired {
		result, err := e.LiquidateDelinquents(ctx, order.ID, shared.ActorSystem, false)
		if err != nil {
			e.logger.Error("automatic liquidation failed",
				slog.Int64("order_id", order.ID),
				slog.Any("error", err))
			report.Failures = append(report.Failures, SweepFailure{OrderID: order.ID, Reason: err.Error()})
			continue
		}
		report.Processed = append(report.Processed, order.ID)
		report.Liquidated += len(result.Liquidated)
	}
	return &report, nil
}
