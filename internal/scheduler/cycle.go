package scheduler

import (
	"context"

	"github.com/cindychow0101/Portfolio-tracker/internal/pipeline"
	"github.com/rs/zerolog"
)

// CycleRunner runs one full recomputation
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.CycleResult, error)
}

// CycleJob runs the recomputation pipeline
type CycleJob struct {
	runner CycleRunner
	log    zerolog.Logger
}

// NewCycleJob creates the recomputation job
func NewCycleJob(runner CycleRunner, log zerolog.Logger) *CycleJob {
	return &CycleJob{
		runner: runner,
		log:    log.With().Str("job", "recompute_cycle").Logger(),
	}
}

// Name returns the job name
func (j *CycleJob) Name() string {
	return "recompute_cycle"
}

// Run executes one cycle. Skipped symbols or emails are logged and do not
// fail the job.
func (j *CycleJob) Run(ctx context.Context) error {
	res, err := j.runner.RunCycle(ctx)
	if err != nil {
		return err
	}
	if res.Errors != nil {
		j.log.Warn().Err(res.Errors).Msg("Cycle completed with skipped entries")
	}
	return nil
}
