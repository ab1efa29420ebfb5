// Package scheduler runs the recomputation cycle on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs. Overlapping runs of the same job are
// skipped rather than queued.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
	ctx  context.Context
}

// New creates a new scheduler. Jobs receive ctx when they run.
func New(ctx context.Context, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	adapter := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		log: log,
		ctx: ctx,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to return
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	<-done.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// Every registers job to run once per interval
func (s *Scheduler) Every(interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s for job %s", interval, job.Name())
	}
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() { s.run(job) }))
	s.log.Info().
		Dur("interval", interval).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// AddJob registers job with a cron expression such as "@every 5m" or
// "0 9 * * MON-FRI".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.run(job) }); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
	}
	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run(s.ctx)
}

func (s *Scheduler) run(job Job) {
	if s.ctx.Err() != nil {
		return
	}
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	if err := job.Run(s.ctx); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return
	}
	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
}

// cronLogger routes cron's own messages through zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
