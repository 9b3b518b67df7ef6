// Package router wires the full query pipeline (semantic analysis, table
// matching, planning, task generation, cost optimization, cross-source
// execution) behind two entry points: Route for natural-language requests
// and ExecuteETL for declarative instruction sets.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/etl"
	"github.com/kongusen/AutoReportAI-sub000/internal/executor"
	"github.com/kongusen/AutoReportAI-sub000/internal/match"
	"github.com/kongusen/AutoReportAI-sub000/internal/planner"
	"github.com/kongusen/AutoReportAI-sub000/internal/semantic"
	"github.com/kongusen/AutoReportAI-sub000/internal/sqlgen"
)

// Options carries per-request constraints.
type Options struct {
	// Deadline bounds the whole request (zero = no deadline)
	Deadline time.Time

	// NamesOnly skips column introspection on live-discovery fallbacks
	NamesOnly bool

	// Tables restricts matching to an explicit table list
	Tables []string

	// MaxCandidates bounds the matcher's candidate list
	MaxCandidates int

	// RowLimit caps rows per task (0 = engine default behavior)
	RowLimit int
}

// Router is the engine's composition root.
type Router struct {
	registry  *catalog.Registry
	analyzer  *semantic.Analyzer
	matcher   *match.Matcher
	planner   *planner.Planner
	generator *sqlgen.Generator
	optimizer *sqlgen.Optimizer
	executor  *executor.Executor
	batch     *executor.BatchRunner

	etlPlanner  *etl.Planner
	etlExecutor *etl.Executor

	logger *slog.Logger
}

// New creates a router over the registry using the given vocabulary.
// If logger is nil, a discard logger is used.
func New(registry *catalog.Registry, vocab semantic.Vocabulary, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		registry:    registry,
		analyzer:    semantic.NewAnalyzer(vocab),
		matcher:     match.NewMatcher(registry, vocab, logger),
		planner:     planner.New(logger),
		generator:   sqlgen.NewGenerator(registry, logger),
		optimizer:   sqlgen.NewOptimizer(logger),
		executor:    executor.New(registry, logger),
		batch:       executor.NewBatchRunner(logger),
		etlPlanner:  etl.NewPlanner(logger),
		etlExecutor: etl.NewExecutor(logger),
		logger:      logger,
	}
}

// Executor exposes the cross-source executor for configuration.
func (r *Router) Executor() *executor.Executor { return r.executor }

// BatchRunner exposes the batch runner for configuration.
func (r *Router) BatchRunner() *executor.BatchRunner { return r.batch }

// Route runs the full planning pipeline for a natural-language request
// against the given source and returns the merged execution result. The
// pipeline never fails on "nothing matched": a fallback plan produces a
// low-confidence but well-formed result instead.
func (r *Router) Route(ctx context.Context, text, sourceID string, opts Options) (*executor.Result, error) {
	if _, ok := r.registry.Source(sourceID); !ok {
		return nil, fmt.Errorf("source %q not registered", sourceID)
	}

	ctx, cancel := withDeadline(ctx, opts.Deadline)
	defer cancel()

	qc := r.analyzer.Analyze(text)
	r.logger.Info("analyzed request",
		slog.String("intent", string(qc.Intent)),
		slog.Any("entities", qc.Entities),
		slog.Float64("confidence", qc.Confidence))

	candidates, err := r.matcher.Match(ctx, &qc, sourceID, match.Options{
		Tables:     opts.Tables,
		MaxResults: opts.MaxCandidates,
		NamesOnly:  opts.NamesOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("table matching failed: %w", err)
	}

	plan := r.planner.Build(&qc, candidates, sourceID)
	tasks := r.optimizer.Optimize(r.generator.Generate(plan))

	result := r.execute(ctx, plan, tasks, opts)

	result.Stats["intent"] = string(qc.Intent)
	result.Stats["intent_confidence"] = qc.Confidence
	result.Stats["complexity"] = string(plan.Complexity)
	result.Stats["cross_source"] = plan.CrossSource
	if plan.Fallback {
		result.Stats["fallback_plan"] = true
	}
	return result, nil
}

// execute dispatches tasks: cross-source batches go through the concurrent
// executor, single high-complexity or unbounded scans through the paginated
// batch runner, everything else through the single-task fast path.
func (r *Router) execute(ctx context.Context, plan *planner.Plan, tasks []*sqlgen.Task, opts Options) *executor.Result {
	if len(tasks) == 1 && !plan.Fallback &&
		(plan.Complexity == planner.ComplexityHigh || !adapter.HasLimit(tasks[0].SQL)) {
		return r.executeBatched(ctx, tasks[0])
	}

	return r.executor.Execute(ctx, tasks, opts.RowLimit)
}

// executeBatched runs one task through the pagination loop.
func (r *Router) executeBatched(ctx context.Context, task *sqlgen.Task) *executor.Result {
	ad, err := r.registry.Open(ctx, task.SourceID)
	if err != nil {
		res := r.executor.Execute(ctx, nil, 0) // yields a well-formed failure
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	defer func() { _ = ad.Close() }()

	result, err := r.batch.Run(ctx, ad, task.SQL)
	if err != nil {
		return &executor.Result{
			Errors: []string{err.Error()},
			Stats:  map[string]any{"batched": true},
		}
	}
	result.Stats["batched"] = true
	return result
}

// PlanETL builds ETL instructions for a typed requirement by describing the
// requirement's table on the source.
func (r *Router) PlanETL(ctx context.Context, req etl.Requirement, sourceID string) (*etl.Instructions, error) {
	ad, err := r.registry.Open(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ad.Close() }()

	meta, err := ad.DescribeTable(ctx, req.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", req.Table, err)
	}
	return r.etlPlanner.Plan(req, meta.Columns)
}

// ExecuteETL runs an instruction set against the given source. This is the
// declarative path; no planning happens here.
func (r *Router) ExecuteETL(ctx context.Context, instr *etl.Instructions, sourceID string, opts Options) (*etl.ProcessedData, error) {
	ctx, cancel := withDeadline(ctx, opts.Deadline)
	defer cancel()

	ad, err := r.registry.Open(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ad.Close() }()

	pd, err := r.etlExecutor.Execute(ctx, ad, instr)
	if err != nil {
		return nil, err
	}
	pd.Metadata["source_id"] = sourceID
	return pd, nil
}

func withDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline)
}
