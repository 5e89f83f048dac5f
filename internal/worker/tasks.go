package worker

import (
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskSweepAbsences = "attendance:sweep_absences"
)

// NewSweepTask builds the periodic absence sweep task. The payload is empty;
// the handler evaluates every user against the current time. The sweep is
// idempotent, so failed runs are not retried and the next schedule picks up.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(
		TaskSweepAbsences,
		nil,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(23*time.Hour),
	)
}
