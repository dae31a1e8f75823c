package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Resync periodically runs a full rescan as a safety net for missed
// filesystem events.
type Resync struct {
	scheduler gocron.Scheduler
	interval  time.Duration
}

// NewResync schedules task every interval. Runs never overlap.
func NewResync(interval time.Duration, task func()) (*Resync, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("resync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create resync job: %w", err)
	}
	return &Resync{scheduler: s, interval: interval}, nil
}

// Start begins the schedule.
func (r *Resync) Start() {
	slog.Info("Starting periodic resync", slog.Duration("interval", r.interval))
	r.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running task.
func (r *Resync) Stop() error {
	return r.scheduler.Shutdown()
}
