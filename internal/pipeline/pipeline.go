package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"newsimpact/internal/collector"
	"newsimpact/internal/domain"
	"newsimpact/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var ErrRunInProgress = errors.New("pipeline run already in progress")

type Collector interface {
	CollectAll(ctx context.Context, sources []collector.Source, since time.Time) (iter.Seq[domain.RawArticle], []*collector.Run)
}

type Enricher interface {
	Enrich(ctx context.Context, raw *domain.RawArticle) (*domain.EnrichedArticle, error)
}

type Resolver interface {
	Resolve(ctx context.Context, name string) (domain.SymbolMapping, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, article *domain.EnrichedArticle, mapping domain.SymbolMapping) (domain.ImpactVerdict, error)
}

type Exporter interface {
	Export(ctx context.Context, src store.SnapshotSource) (store.ExportResult, error)
}

type Config struct {
	EnrichWorkers  int
	ResolveWorkers int
	AnalyzeWorkers int
	// MinConfidence is the lowest resolver confidence accepted for analysis.
	MinConfidence float64
}

func (c Config) withDefaults() Config {
	if c.EnrichWorkers <= 0 {
		c.EnrichWorkers = 4
	}
	if c.ResolveWorkers <= 0 {
		c.ResolveWorkers = 4
	}
	if c.AnalyzeWorkers <= 0 {
		c.AnalyzeWorkers = 4
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.5
	}
	return c
}

type RunOptions struct {
	Since time.Time
	// Force recomputes every stage for articles that already have output.
	Force bool
}

type Orchestrator struct {
	tracer    trace.Tracer
	store     store.Store
	collector Collector
	sources   []collector.Source
	enricher  Enricher
	resolver  Resolver
	analyzer  Analyzer
	exporter  Exporter
	cfg       Config

	running sync.Mutex
	now     func() time.Time
	newID   func() string
}

// New wires an orchestrator. exporter may be nil to skip the file snapshots.
func New(
	tracer trace.Tracer,
	st store.Store,
	coll Collector,
	sources []collector.Source,
	enricher Enricher,
	resolver Resolver,
	analyzer Analyzer,
	exporter Exporter,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		tracer:    tracer,
		store:     st,
		collector: coll,
		sources:   sources,
		enricher:  enricher,
		resolver:  resolver,
		analyzer:  analyzer,
		exporter:  exporter,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run executes one pass over every stage. Per-article failures are counted
// and recorded on the article's records; the run fails only on storage
// errors, total source unavailability or cancellation, in which case the
// returned result is in the failed state and err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (domain.RunResult, error) {
	if !o.running.TryLock() {
		return domain.RunResult{}, ErrRunInProgress
	}
	defer o.running.Unlock()

	result := domain.NewRunResult(o.newID(), opts.Since, opts.Force, o.now().UTC())
	ctx, span := o.tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", result.RunID),
		attribute.Bool("force", opts.Force),
	)
	log.Printf("pipeline: run %s started (since=%s force=%v)", result.RunID, opts.Since.Format(time.RFC3339), opts.Force)

	for _, stage := range domain.Stages {
		result.State = domain.RunStateFor(stage)
		counts, err := o.runStage(ctx, stage, opts, &result)
		result.Stages[stage] = counts
		if err != nil {
			return o.fail(result, stage, err)
		}
		log.Printf("pipeline: run %s %s processed=%d partial=%d skipped=%d failed=%d",
			result.RunID, stage, counts.Processed, counts.Partial, counts.Skipped, counts.Failed)
	}

	if o.exporter != nil {
		exported, err := o.exporter.Export(ctx, o.store)
		if err != nil {
			return o.fail(result, domain.StageAnalyze, err)
		}
		log.Printf("pipeline: run %s exported %d articles and %d verdicts to %s",
			result.RunID, exported.Articles, exported.Verdicts, exported.VerdictsPath)
	}

	result.State = domain.RunDone
	result.FinishedAt = o.now().UTC()
	return result, nil
}

func (o *Orchestrator) fail(result domain.RunResult, stage domain.Stage, err error) (domain.RunResult, error) {
	result.State = domain.RunFailed
	result.FailedStage = stage
	result.Error = err.Error()
	result.FinishedAt = o.now().UTC()
	log.Printf("pipeline: run %s failed at %s: %v", result.RunID, stage, err)
	return result, fmt.Errorf("pipeline %s: %w", stage, err)
}

func (o *Orchestrator) runStage(ctx context.Context, stage domain.Stage, opts RunOptions, result *domain.RunResult) (domain.StageCounts, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline."+string(stage))
	defer span.End()

	switch stage {
	case domain.StageCollect:
		return o.collect(ctx, opts, result)
	case domain.StageEnrich:
		return o.each(ctx, stage, opts.Force, o.cfg.EnrichWorkers, o.enrichOne)
	case domain.StageResolve:
		return o.each(ctx, stage, opts.Force, o.cfg.ResolveWorkers, o.resolveOne)
	case domain.StageAnalyze:
		var written atomic.Int64
		counts, err := o.each(ctx, stage, opts.Force, o.cfg.AnalyzeWorkers, func(ctx context.Context, id string) (outcome, error) {
			out, n, err := o.analyzeOne(ctx, id)
			written.Add(int64(n))
			return out, err
		})
		result.VerdictsWritten = int(written.Load())
		return counts, err
	}
	return domain.StageCounts{}, fmt.Errorf("unknown stage %q", stage)
}

func (o *Orchestrator) collect(ctx context.Context, opts RunOptions, result *domain.RunResult) (domain.StageCounts, error) {
	var counts domain.StageCounts
	articles, runs := o.collector.CollectAll(ctx, o.sources, opts.Since)
	for article := range articles {
		existing, err := o.store.GetRaw(ctx, article.ID)
		if err != nil {
			return counts, err
		}
		if existing != nil && !opts.Force {
			counts.Skipped++
			continue
		}
		if err := o.store.PutRaw(ctx, &article); err != nil {
			return counts, err
		}
		counts.Processed++
	}
	if err := ctx.Err(); err != nil {
		return counts, err
	}

	unavailable := len(runs) > 0
	for _, run := range runs {
		counts.Failed += run.Malformed
		counts.Skipped += run.Old + run.Duplicates + run.Filtered
		for _, e := range run.Errors {
			result.CollectionErrors = append(result.CollectionErrors, e.Error())
		}
		if !run.Unavailable() {
			unavailable = false
		}
	}
	if unavailable {
		return counts, fmt.Errorf("%w: all %d sources failed", domain.ErrSourceUnavailable, len(runs))
	}
	return counts, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomePartial
	outcomeSkipped
	outcomeFailed
)

type stageCounter struct {
	mu     sync.Mutex
	counts domain.StageCounts
}

func (c *stageCounter) add(out outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch out {
	case outcomeProcessed:
		c.counts.Processed++
	case outcomePartial:
		c.counts.Partial++
	case outcomeSkipped:
		c.counts.Skipped++
	case outcomeFailed:
		c.counts.Failed++
	}
}

// each runs fn over the stage's work list with bounded parallelism. The
// first error cancels the remaining items and is returned.
func (o *Orchestrator) each(ctx context.Context, stage domain.Stage, force bool, workers int, fn func(context.Context, string) (outcome, error)) (domain.StageCounts, error) {
	ids, done, err := o.workList(ctx, stage, force)
	if err != nil {
		return domain.StageCounts{}, err
	}
	counter := &stageCounter{counts: domain.StageCounts{Skipped: done}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := fn(gctx, id)
			if err != nil {
				return err
			}
			counter.add(out)
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return counter.counts, err
}

// workList returns the ids the stage should process and how many were
// skipped because their output already exists.
func (o *Orchestrator) workList(ctx context.Context, stage domain.Stage, force bool) ([]string, int, error) {
	prev, ok := stage.Previous()
	if !ok {
		return nil, 0, nil
	}
	upstream, err := o.store.ListIDs(ctx, prev)
	if err != nil {
		return nil, 0, err
	}
	if force {
		return upstream, 0, nil
	}
	pending, err := o.store.ListPending(ctx, stage)
	if err != nil {
		return nil, 0, err
	}
	return pending, len(upstream) - len(pending), nil
}

func (o *Orchestrator) enrichOne(ctx context.Context, id string) (outcome, error) {
	raw, err := o.store.GetRaw(ctx, id)
	if err != nil {
		return outcomeFailed, err
	}
	if raw == nil {
		return outcomeSkipped, nil
	}
	enriched, err := o.enricher.Enrich(ctx, raw)
	if err != nil {
		return outcomeFailed, err
	}
	if err := o.store.PutEnriched(ctx, enriched); err != nil {
		return outcomeFailed, err
	}
	switch {
	case len(enriched.FieldErrors) >= 4:
		return outcomeFailed, nil
	case enriched.Partial():
		return outcomePartial, nil
	}
	return outcomeProcessed, nil
}

func (o *Orchestrator) resolveOne(ctx context.Context, id string) (outcome, error) {
	enriched, err := o.store.GetEnriched(ctx, id)
	if err != nil {
		return outcomeFailed, err
	}
	if enriched == nil {
		return outcomeSkipped, nil
	}

	res := &domain.ArticleResolution{
		ArticleID: id,
		Mappings:  []domain.SymbolMapping{},
		Symbols:   []domain.SymbolMapping{},
	}
	seen := make(map[string]bool)
	for _, name := range enriched.Companies {
		m, err := o.resolver.Resolve(ctx, name)
		if err != nil {
			return outcomeFailed, err
		}
		res.Mappings = append(res.Mappings, m)
		if reason := o.rejectReason(m); reason != "" {
			res.Filtered = append(res.Filtered, domain.FilteredSymbol{CompanyName: name, Reason: reason})
			continue
		}
		// two names for one listing yield one verdict
		quote := m.QuoteSymbol()
		if seen[quote] {
			continue
		}
		seen[quote] = true
		res.Symbols = append(res.Symbols, m)
	}
	res.ResolvedAt = o.now().UTC()

	if err := o.store.PutResolution(ctx, res); err != nil {
		return outcomeFailed, err
	}
	if len(res.Filtered) > 0 || enriched.FieldFailed(domain.FieldCompanies) {
		return outcomePartial, nil
	}
	return outcomeProcessed, nil
}

// rejectReason returns why a mapping is not analyzed, or "" to accept it.
func (o *Orchestrator) rejectReason(m domain.SymbolMapping) string {
	switch {
	case !m.Resolved():
		if m.Reason != "" {
			return m.Reason
		}
		return domain.ReasonNotFound
	case m.Confidence < o.cfg.MinConfidence:
		return domain.ReasonLowConfidence
	case domain.IsIndexSymbol(m.Symbol):
		return domain.ReasonIndex
	}
	return ""
}

func (o *Orchestrator) analyzeOne(ctx context.Context, id string) (outcome, int, error) {
	res, err := o.store.GetResolution(ctx, id)
	if err != nil {
		return outcomeFailed, 0, err
	}
	enriched, err := o.store.GetEnriched(ctx, id)
	if err != nil {
		return outcomeFailed, 0, err
	}
	if res == nil || enriched == nil {
		return outcomeSkipped, 0, nil
	}

	analysis := &domain.ArticleAnalysis{
		ArticleID: id,
		Verdicts:  make([]domain.ImpactVerdict, 0, len(res.Symbols)),
	}
	degraded := false
	for _, m := range res.Symbols {
		v, err := o.analyzer.Analyze(ctx, enriched, m)
		if err != nil {
			return outcomeFailed, 0, err
		}
		degraded = degraded || v.PriceDataMissing
		analysis.Verdicts = append(analysis.Verdicts, v)
	}
	analysis.AnalyzedAt = o.now().UTC()

	if err := o.store.PutAnalysis(ctx, analysis); err != nil {
		return outcomeFailed, 0, err
	}
	if degraded {
		return outcomePartial, len(analysis.Verdicts), nil
	}
	return outcomeProcessed, len(analysis.Verdicts), nil
}
