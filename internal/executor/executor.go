// Package executor runs query tasks against their sources and merges the
// per-task results into a single outcome with partial-failure tolerance.
// Cross-source plans run concurrently with bounded parallelism.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/sqlgen"
)

// DefaultMaxWorkers bounds concurrent task execution when the caller does
// not configure a pool size.
const DefaultMaxWorkers = 4

// Executor dispatches tasks and merges their results. It holds no mutable
// state beyond its configuration; each task acquires its own source
// connection and releases it on completion.
type Executor struct {
	registry *catalog.Registry
	logger   *slog.Logger

	// MaxWorkers bounds concurrent tasks (0 = DefaultMaxWorkers)
	MaxWorkers int

	// RowLimit is passed to the adapter per task (0 = no limit)
	RowLimit int
}

// New creates an executor over the given registry.
// If logger is nil, a discard logger is used.
func New(registry *catalog.Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute runs the tasks and returns the merged result. rowLimit caps rows
// per task for this call only (0 falls back to the configured RowLimit); it
// is passed through rather than stored so concurrent requests never observe
// each other's limits. A caller-supplied deadline on ctx bounds the whole
// batch: tasks still running at the deadline are abandoned and contribute an
// error entry, never a fatal abort. The result's Success is false only when
// zero tasks succeeded.
func (e *Executor) Execute(ctx context.Context, tasks []*sqlgen.Task, rowLimit int) *Result {
	start := time.Now()
	if rowLimit <= 0 {
		rowLimit = e.RowLimit
	}

	switch len(tasks) {
	case 0:
		return failed(time.Since(start), "no tasks to execute")
	case 1:
		return e.executeSingle(ctx, tasks[0], rowLimit, start)
	default:
		return e.executeMulti(ctx, tasks, rowLimit, start)
	}
}

// executeSingle is the single-source fast path.
func (e *Executor) executeSingle(ctx context.Context, task *sqlgen.Task, rowLimit int, start time.Time) *Result {
	e.logger.Debug("executing single-source task", slog.String("source", task.SourceID))

	taskResult := e.runTask(ctx, task, rowLimit)
	taskResult.Elapsed = time.Since(start)
	taskResult.Stats["sources"] = 1
	return taskResult
}

// executeMulti fans tasks out to a bounded worker pool, waits for every
// result (the merge needs all of them), then merges whatever succeeded.
func (e *Executor) executeMulti(ctx context.Context, tasks []*sqlgen.Task, rowLimit int, start time.Time) *Result {
	workers := e.MaxWorkers
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}

	e.logger.Info("executing multi-source batch",
		slog.Int("tasks", len(tasks)), slog.Int("workers", workers))

	outcomes := make([]*Result, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = e.runTask(gctx, task, rowLimit)
			// Task failures are recorded, not propagated: siblings must
			// keep running.
			return nil
		})
	}
	_ = g.Wait()

	merged := newResult()
	merged.Elapsed = time.Since(start)
	merged.Stats["sources"] = len(tasks)

	var succeeded []*Result
	for i, outcome := range outcomes {
		task := tasks[i]
		if outcome == nil {
			merged.Errors = append(merged.Errors,
				fmt.Sprintf("source %s (%s): abandoned before completion", task.SourceID, task.SourceName))
			continue
		}
		merged.Stats[fmt.Sprintf("task_%s_ms", task.SourceID)] = outcome.Elapsed.Milliseconds()
		if outcome.Success {
			succeeded = append(succeeded, outcome)
		} else {
			for _, msg := range outcome.Errors {
				merged.Errors = append(merged.Errors,
					fmt.Sprintf("source %s (%s): %s", task.SourceID, task.SourceName, msg))
			}
		}
	}

	if len(succeeded) == 0 {
		e.logger.Error("all sources failed", slog.Int("tasks", len(tasks)))
		return merged
	}

	sets := make([]*adapter.ResultSet, len(succeeded))
	for i, r := range succeeded {
		sets[i] = r.Data
	}
	data, strategy := mergeResults(sets)

	merged.Success = true
	merged.Data = data
	merged.RowCount = data.RowCount()
	merged.Stats["merge_strategy"] = strategy
	merged.Stats["sources_succeeded"] = len(succeeded)

	e.logger.Info("merged multi-source results",
		slog.Int("succeeded", len(succeeded)),
		slog.Int("failed", len(tasks)-len(succeeded)),
		slog.Int("rows", merged.RowCount))

	return merged
}

// runTask acquires a connection for the task's source, executes its SQL,
// and releases the connection. Never panics; all failures land in the
// returned result.
func (e *Executor) runTask(ctx context.Context, task *sqlgen.Task, rowLimit int) *Result {
	start := time.Now()

	ad, err := e.registry.Open(ctx, task.SourceID)
	if err != nil {
		return failed(time.Since(start), err.Error())
	}
	defer func() { _ = ad.Close() }()

	data, err := ad.Execute(ctx, task.SQL, rowLimit)
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Warn("task failed",
			slog.String("source", task.SourceID), slog.String("error", err.Error()))
		return failed(elapsed, err.Error())
	}

	r := newResult()
	r.Success = true
	r.Data = data
	r.RowCount = data.RowCount()
	r.Elapsed = elapsed
	r.Stats["sql"] = task.SQL
	return r
}
