package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"markme/internal/clock"
	"markme/internal/config"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// StartScheduler registers the absence sweep with an asynq Scheduler.
// Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	location := sweepLocation(cfg, logger)

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: location,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	entryID, err := scheduler.Register(cfg.SweepSchedule, NewSweepTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register sweep schedule: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info(
		"scheduler started",
		"schedule", cfg.SweepSchedule,
		"timezone", location.String(),
		"entry_id", entryID,
	)
	return func() { scheduler.Shutdown() }, nil
}

// StartLocal runs the sweep on cfg.SweepSchedule inside this process. It is
// used when no Redis is configured, so only one replica should run it.
func StartLocal(cfg *config.Config, sweeper Sweeper, logger *slog.Logger) (stop func(), err error) {
	location := sweepLocation(cfg, logger)
	c := cron.New(cron.WithLocation(location))

	handle := handleSweepAbsences(logger, sweeper, time.Now)
	task := NewSweepTask()
	if _, err := c.AddFunc(cfg.SweepSchedule, func() {
		if err := handle(context.Background(), task); err != nil {
			logger.Error("scheduled absence sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to register sweep schedule: %w", err)
	}
	c.Start()

	next, _ := NextRun(cfg.SweepSchedule, location, time.Now())
	logger.Info("in-process scheduler started", "schedule", cfg.SweepSchedule, "timezone", location.String(), "next_run", next)
	return func() { <-c.Stop().Done() }, nil
}

// NextRun returns the first activation of schedule strictly after now.
func NextRun(schedule string, loc *time.Location, now time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.In(loc)), nil
}

func sweepLocation(cfg *config.Config, logger *slog.Logger) *time.Location {
	loc, err := clock.LoadZone(cfg.SweepLocation)
	if err != nil {
		logger.Warn("invalid sweep timezone, using UTC", "timezone", cfg.SweepLocation, "error", err)
		return time.UTC
	}
	return loc
}
