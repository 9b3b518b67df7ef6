package executor

import (
	"time"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

// Result is the outcome of executing one task, or of the merged multi-task
// execution. Success is false only when nothing usable was produced; partial
// source failures leave Success true with the failures recorded in Errors.
type Result struct {
	// Success reports whether any usable data was produced
	Success bool

	// Data is the (possibly merged) result set; nil or empty when Success is false
	Data *adapter.ResultSet

	// RowCount is the number of rows in Data
	RowCount int

	// Elapsed is the wall-clock execution time
	Elapsed time.Duration

	// Errors collects per-task failure descriptions
	Errors []string

	// Stats carries free-form performance and provenance metadata
	// (per-task timings, merge strategy, fallback flags)
	Stats map[string]any
}

// newResult creates an empty result with an initialized stats map.
func newResult() *Result {
	return &Result{Stats: make(map[string]any)}
}

// failed builds a terminal failure result.
func failed(elapsed time.Duration, errs ...string) *Result {
	r := newResult()
	r.Elapsed = elapsed
	r.Errors = append(r.Errors, errs...)
	return r
}
