// Package worker runs the scheduled absence sweep, either through asynq on
// Redis or in process when no Redis is configured.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"markme/internal/app"
	"markme/internal/config"

	"github.com/hibiken/asynq"
)

// Sweeper is the part of app.AbsenceSweeper the worker drives.
type Sweeper interface {
	SweepCompletedDay(ctx context.Context, now time.Time) (app.SweepReport, error)
}

// Start starts the asynq worker in non-blocking mode and returns a stop function.
func Start(cfg *config.Config, sweeper Sweeper, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     1,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSweepAbsences, handleSweepAbsences(logger, sweeper, time.Now))

	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	logger.Info("worker started", "concurrency", 1, "task_type", TaskSweepAbsences)
	return func() { srv.Shutdown() }, nil
}

// handleSweepAbsences runs one sweep over the local day that just ended for
// each user.
func handleSweepAbsences(logger *slog.Logger, sweeper Sweeper, now func() time.Time) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		started := now()
		logger.Info("processing absence sweep", "task_type", task.Type(), "reference", started.UTC().Format(time.RFC3339))

		report, err := sweeper.SweepCompletedDay(ctx, started)
		if err != nil {
			return fmt.Errorf("absence sweep: %w", err)
		}
		logger.Info("absence sweep task completed",
			"marked", report.Marked,
			"failed", report.Failed,
			"duration", time.Since(started).String(),
		)
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)
	}
}
