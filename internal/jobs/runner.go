// Package jobs fires the analysis batch and queue drain on an in-process
// cron schedule. Deployments driven by an external scheduler leave it off.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one scheduled unit of work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Runner struct {
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner builds a runner for standard five-field cron expressions. Each
// run gets its own context bounded by timeout; a run still in progress when
// its next tick arrives causes that tick to be skipped.
func NewRunner(log zerolog.Logger, timeout time.Duration) *Runner {
	l := log.With().Str("component", "jobs").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(&l)),
		)),
		log:     l,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job on schedule.
func (r *Runner) Add(schedule string, job Job) error {
	_, err := r.cron.AddFunc(schedule, func() {
		_ = r.run(r.ctx, job)
	})
	if err != nil {
		return err
	}
	r.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}

// RunNow executes job immediately, outside its schedule.
func (r *Runner) RunNow(ctx context.Context, job Job) error {
	r.log.Info().Str("job", job.Name()).Msg("running job immediately")
	return r.run(ctx, job)
}

func (r *Runner) run(parent context.Context, job Job) error {
	ctx := parent
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx)
	ev := r.log.Debug()
	if err != nil {
		ev = r.log.Error().Err(err)
	}
	ev.Str("job", job.Name()).Dur("took", time.Since(start)).Msg("job finished")
	return err
}

func (r *Runner) Start() {
	r.cron.Start()
	r.log.Info().Int("jobs", len(r.cron.Entries())).Msg("cron started")
}

// Stop halts scheduling, cancels in-flight runs and waits for them to return.
func (r *Runner) Stop() {
	stopped := r.cron.Stop()
	r.cancel()
	<-stopped.Done()
	r.log.Info().Msg("cron stopped")
}
