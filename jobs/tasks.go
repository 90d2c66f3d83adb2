package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrdersCloseDue closes every open order past its end date.
	TaskOrdersCloseDue = "orders:close_due"
	// TaskOrdersLiquidateOverdue liquidates grace-period orders past deadline.
	TaskOrdersLiquidateOverdue = "orders:liquidate_overdue"
)

// SweepPayload tags a scheduled sweep with a run id for log correlation.
type SweepPayload struct {
	RunID string `json:"run_id"`
}

// NewCloseDueTask constructs the scheduled close-due task.
func NewCloseDueTask() (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{RunID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrdersCloseDue, data), nil
}

// NewLiquidateOverdueTask constructs the scheduled liquidation task.
func NewLiquidateOverdueTask() (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{RunID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrdersLiquidateOverdue, data), nil
}
