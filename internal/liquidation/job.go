package liquidation

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ronda-hq/ronda/internal/jobs"
	"github.com/ronda-hq/ronda/internal/observability"
	"github.com/ronda-hq/ronda/jobs"
)

// SweepJob processes the scheduled liquidate-overdue sweep.
type SweepJob struct {
	engine  *Engine
	metrics *jobmetrics.Metrics
	app     *observability.Metrics
	logger  *slog.Logger
}

// NewSweepJob constructs a job handler. metrics and app may be nil.
func NewSweepJob(engine *Engine, metrics *jobmetrics.Metrics, app *observability.Metrics, logger *slog.Logger) *SweepJob {
	return &SweepJob{engine: engine, metrics: metrics, app: app, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *SweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.SweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(jobs.TaskOrdersLiquidateOverdue)
	report, err := j.engine.LiquidateOverdue(ctx)
	if err != nil {
		j.logger.Error("liquidate-overdue sweep", slog.String("run_id", payload.RunID), slog.Any("error", err))
		return tracker.End(err)
	}

	j.app.AddClientsLiquidated(report.Liquidated)
	j.app.AddSweepFailures(jobs.TaskOrdersLiquidateOverdue, len(report.Failures))
	j.logger.Info("liquidate-overdue sweep finished",
		slog.String("run_id", payload.RunID),
		slog.Int("orders_processed", len(report.Processed)),
		slog.Int("liquidated", report.Liquidated),
		slog.Int("failures", len(report.Failures)))
	return tracker.End(nil)
}
