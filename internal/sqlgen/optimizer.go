package sqlgen

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

// Optimizer defaults.
const (
	// DefaultLargeTableRows is the row estimate above which a task is
	// considered large: its priority is demoted and a LIMIT is injected.
	DefaultLargeTableRows = 1_000_000

	// DefaultInjectedLimit is the LIMIT injected into large-table tasks.
	DefaultInjectedLimit = 10_000

	// DefaultTimeoutHintSeconds is the timeout suggested for join-heavy tasks.
	DefaultTimeoutHintSeconds = 60
)

// Optimizer reorders tasks by estimated cost and injects execution hints.
// It is pure post-processing: side-effect free beyond mutating the task
// list in place.
type Optimizer struct {
	logger *slog.Logger

	// LargeTableRows overrides DefaultLargeTableRows when > 0
	LargeTableRows int64

	// InjectedLimit overrides DefaultInjectedLimit when > 0
	InjectedLimit int
}

// NewOptimizer creates an optimizer.
// If logger is nil, a discard logger is used.
func NewOptimizer(logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Optimizer{logger: logger}
}

// Optimize sorts tasks by priority (cost as tie-break) and applies
// row-limit and timeout hints. The slice is mutated in place and returned.
func (o *Optimizer) Optimize(tasks []*Task) []*Task {
	largeRows := o.LargeTableRows
	if largeRows <= 0 {
		largeRows = DefaultLargeTableRows
	}
	limit := o.InjectedLimit
	if limit <= 0 {
		limit = DefaultInjectedLimit
	}

	for _, t := range tasks {
		rows := t.RowEstimate()

		// Large scans are less urgent than the cheap ones whose results
		// the merge is anchored on.
		if rows > largeRows && t.Priority < PriorityLow {
			t.Priority++
		}

		if rows > largeRows && !adapter.HasLimit(t.SQL) {
			t.SQL = fmt.Sprintf("%s LIMIT %d", t.SQL, limit)
			o.logger.Debug("injected row limit",
				slog.String("source", t.SourceID), slog.Int64("row_estimate", rows))
		}

		if t.JoinCount() > 2 {
			t.SQL = fmt.Sprintf("/* hint: timeout=%ds */ %s", DefaultTimeoutHintSeconds, t.SQL)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return EstimateCost(tasks[i]) < EstimateCost(tasks[j])
	})

	return tasks
}

// EstimateCost is the heuristic task cost: total rows scaled by join fan-out.
// Used only to order and hint execution, never to choose among plans.
func EstimateCost(t *Task) float64 {
	return float64(t.RowEstimate()) * (1 + 0.5*float64(t.JoinCount()))
}
