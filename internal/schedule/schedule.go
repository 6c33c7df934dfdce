// Package schedule runs the alert and cleanup routines periodically.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Task is one scheduled routine. It must return once ctx is cancelled.
type Task func(ctx context.Context)

// Daemon wraps a gocron scheduler that runs at most one task at a time, so
// scheduled runs behave like sequential manual invocations.
type Daemon struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
}

func New(loc *time.Location) *Daemon {
	if loc == nil {
		loc = time.Local
	}
	s := gocron.NewScheduler(loc)
	s.SetMaxConcurrentJobs(1, gocron.WaitMode)
	return &Daemon{scheduler: s, ctx: context.Background()}
}

// Every schedules task at a fixed interval, starting immediately.
func (d *Daemon) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval for %s: %s", name, interval)
	}
	_, err := d.scheduler.Every(interval).Tag(name).Do(d.wrap(name, task))
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// DailyAt schedules task once a day at a wall-clock time formatted as "15:04".
func (d *Daemon) DailyAt(name, at string, task Task) error {
	if _, err := time.Parse("15:04", at); err != nil {
		return fmt.Errorf("invalid time of day for %s: %q", name, at)
	}
	_, err := d.scheduler.Every(1).Day().At(at).Tag(name).Do(d.wrap(name, task))
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if len(d.scheduler.Jobs()) == 0 {
		return errors.New("no jobs scheduled")
	}
	d.ctx = ctx

	d.scheduler.StartAsync()
	for _, job := range d.scheduler.Jobs() {
		slog.Info("Scheduled job", "tags", job.Tags(), "next_run", job.NextRun())
	}

	<-ctx.Done()
	slog.Info("Stopping scheduler")
	d.scheduler.Stop()
	return nil
}

func (d *Daemon) wrap(name string, task Task) func() {
	return func() {
		if d.ctx.Err() != nil {
			return
		}
		start := time.Now()
		slog.Debug("Job started", "job", name)
		task(d.ctx)
		slog.Debug("Job finished", "job", name, "duration", time.Since(start))
	}
}
