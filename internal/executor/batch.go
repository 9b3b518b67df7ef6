package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

// Batch runner defaults.
const (
	// DefaultPageSize is the number of rows fetched per page.
	DefaultPageSize = 1000

	// DefaultMemoryThreshold is the utilization above which a GC hint is issued.
	DefaultMemoryThreshold = 0.8

	// DefaultCriticalThreshold is the utilization above which, after a GC
	// hint, the scan aborts with a partial result.
	DefaultCriticalThreshold = 0.9
)

// BatchRunner executes a single-source query as a sequential pagination
// loop, applying memory-pressure backpressure between pages. Pages are never
// fetched in parallel within one scan, so the memory samples stay
// meaningful.
type BatchRunner struct {
	logger *slog.Logger

	// PageSize is the rows fetched per page (0 = DefaultPageSize)
	PageSize int

	// MemoryThreshold triggers a GC hint (0 = DefaultMemoryThreshold)
	MemoryThreshold float64

	// CriticalThreshold aborts the scan (0 = DefaultCriticalThreshold)
	CriticalThreshold float64

	// Monitor samples memory utilization (nil = RuntimeMonitor)
	Monitor MemoryMonitor

	// Hint is the GC hint issued under pressure (nil = runtime.GC)
	Hint GCHint
}

// NewBatchRunner creates a batch runner with default settings.
// If logger is nil, a discard logger is used.
func NewBatchRunner(logger *slog.Logger) *BatchRunner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BatchRunner{logger: logger}
}

// Run paginates the query with ascending OFFSET until an empty page, a
// context cancellation, or critical memory pressure. Pages are concatenated
// in order. A memory abort returns the pages accumulated so far as a
// partial result with a warning flag in stats, not an error.
func (r *BatchRunner) Run(ctx context.Context, ad adapter.Adapter, query string) (*Result, error) {
	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	threshold := r.MemoryThreshold
	if threshold <= 0 {
		threshold = DefaultMemoryThreshold
	}
	critical := r.CriticalThreshold
	if critical <= 0 {
		critical = DefaultCriticalThreshold
	}
	monitor := r.Monitor
	if monitor == nil {
		monitor = RuntimeMonitor{}
	}
	hint := r.Hint
	if hint == nil {
		hint = defaultGCHint
	}

	start := time.Now()
	result := newResult()

	var data *adapter.ResultSet
	pages := 0
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("scan canceled: %v", err))
			break
		}

		if util := monitor.Utilization(); util > threshold {
			r.logger.Debug("memory pressure, issuing gc hint", slog.Float64("utilization", util))
			hint()
			if util = monitor.Utilization(); util > critical {
				r.logger.Warn("memory still critical after gc hint, aborting scan",
					slog.Float64("utilization", util), slog.Int("pages", pages))
				result.Stats["memory_pressure_abort"] = true
				break
			}
		}

		page, err := ad.Execute(ctx, pageQuery(query, pageSize, offset), 0)
		if err != nil {
			// A failed page after successful ones still yields the partial
			// accumulation; a failed first page is a real error.
			if data == nil {
				return nil, fmt.Errorf("failed to fetch first page: %w", err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("page at offset %d failed: %v", offset, err))
			break
		}

		if page.RowCount() == 0 {
			break
		}

		pages++
		if data == nil {
			data = page
		} else {
			data.Rows = append(data.Rows, page.Rows...)
		}

		if page.RowCount() < pageSize {
			break
		}
	}

	if data == nil {
		data = &adapter.ResultSet{}
	}

	// An error or cancellation before the first page means no data was
	// produced at all; anything after that is a partial result.
	result.Success = pages > 0 || len(result.Errors) == 0
	result.Data = data
	result.RowCount = data.RowCount()
	result.Elapsed = time.Since(start)
	result.Stats["pages"] = pages
	result.Stats["page_size"] = pageSize
	return result, nil
}

// pageQuery appends the pagination clause. A query that already carries a
// LIMIT (an optimizer-injected cap, for instance) is wrapped in a subquery
// so the page window applies to the capped result instead of producing two
// LIMIT clauses.
func pageQuery(query string, pageSize, offset int) string {
	if adapter.HasLimit(query) {
		return fmt.Sprintf("SELECT * FROM (%s) AS page LIMIT %d OFFSET %d", query, pageSize, offset)
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, pageSize, offset)
}
