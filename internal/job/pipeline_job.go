package job

import (
	"context"
	"log"
	"time"

	"newsimpact/internal/domain"
	"newsimpact/internal/pipeline"

	"go.opentelemetry.io/otel/trace"
)

type PipelineRunner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (domain.RunResult, error)
}

// PipelineJob runs the pipeline on a fixed interval over a trailing
// collection window.
type PipelineJob struct {
	tracer       trace.Tracer
	runner       PipelineRunner
	pollInterval time.Duration
	lookback     time.Duration
	now          func() time.Time
}

func NewPipelineJob(tracer trace.Tracer, runner PipelineRunner, pollInterval, lookback time.Duration) *PipelineJob {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Minute
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &PipelineJob{tracer: tracer, runner: runner, pollInterval: pollInterval, lookback: lookback, now: time.Now}
}

// Start runs once immediately and then on every tick. Blocks until ctx is
// cancelled.
func (j *PipelineJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Pipeline job disabled: no runner")
		<-ctx.Done()
		return
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *PipelineJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "pipeline-job.run-once")
	defer span.End()

	since := j.now().Add(-j.lookback).UTC()
	result, err := j.runner.Run(ctx, pipeline.RunOptions{Since: since})
	if err != nil {
		log.Printf("Pipeline cycle error: %v", err)
		return
	}
	collected := result.Stages[domain.StageCollect]
	analyzed := result.Stages[domain.StageAnalyze]
	log.Printf(
		"Pipeline cycle complete run=%s collected=%d enriched=%d analyzed=%d partial=%d verdicts=%d warnings=%d",
		result.RunID,
		collected.Processed,
		result.Stages[domain.StageEnrich].Processed+result.Stages[domain.StageEnrich].Partial,
		analyzed.Processed+analyzed.Partial,
		analyzed.Partial,
		result.VerdictsWritten,
		len(result.CollectionErrors),
	)
}
