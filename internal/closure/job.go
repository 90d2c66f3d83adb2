package closure

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ronda-hq/ronda/internal/jobs"
	"github.com/ronda-hq/ronda/internal/observability"
	"github.com/ronda-hq/ronda/jobs"
)

// SweepJob processes the scheduled close-due sweep.
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

	tracker := j.metrics.Track(jobs.TaskOrdersCloseDue)
	report, err := j.engine.CloseDue(ctx)
	if err != nil {
		j.logger.Error("close-due sweep", slog.String("run_id", payload.RunID), slog.Any("error", err))
		return tracker.End(err)
	}

	j.app.AddOrdersClosed("automatic", len(report.Closed))
	j.app.AddSweepFailures(jobs.TaskOrdersCloseDue, len(report.Failures))
	j.logger.Info("close-due sweep finished",
		slog.String("run_id", payload.RunID),
		slog.Int("closed", len(report.Closed)),
		slog.Int("failures", len(report.Failures)))
	return tracker.End(nil)
}
