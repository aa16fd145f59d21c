package jobs

import (
	"context"

	"wheel/internal/analysis"
	"wheel/internal/patterns"
)

type BatchRunner interface {
	Run(ctx context.Context, opts analysis.Options) (analysis.Result, error)
}

type QueueDrainer interface {
	ProcessQueue(ctx context.Context, batchSize int) (patterns.DrainResult, error)
}

// AnalysisJob is the scheduled (non-manual) hourly analysis pass.
type AnalysisJob struct {
	Scheduler BatchRunner
}

func (AnalysisJob) Name() string { return "analysis" }

func (j AnalysisJob) Run(ctx context.Context) error {
	_, err := j.Scheduler.Run(ctx, analysis.Options{})
	return err
}

// DrainJob processes one batch of the extraction queue.
type DrainJob struct {
	Extractor QueueDrainer
	BatchSize int
}

func (DrainJob) Name() string { return "pattern_drain" }

func (j DrainJob) Run(ctx context.Context) error {
	_, err := j.Extractor.ProcessQueue(ctx, j.BatchSize)
	return err
}
