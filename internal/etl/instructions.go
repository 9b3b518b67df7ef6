// Package etl is the declarative entry point of the engine: a typed data
// requirement is converted directly into ETL instructions (fields, filters,
// aggregations, time/region filter configs, transformations, output shape)
// and executed against one source, skipping query planning entirely.
package etl

import (
	"time"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

// QueryType is the declared shape of the generated query.
type QueryType string

// Query types.
const (
	QuerySelect         QueryType = "select"
	QueryAggregate      QueryType = "aggregate"
	QuerySelectForChart QueryType = "select_for_chart"
)

// OutputFormat is the declared shape of the processed value.
type OutputFormat string

// Output formats.
const (
	OutputScalar    OutputFormat = "scalar"
	OutputArray     OutputFormat = "array"
	OutputJSON      OutputFormat = "json"
	OutputDataframe OutputFormat = "dataframe"
)

// Filter is one declarative filter condition.
type Filter struct {
	Field    string
	Operator string // = != > < >= <= like
	Value    any
}

// Aggregation is one declarative aggregation config. Field must name a
// concrete column of the instruction's table.
type Aggregation struct {
	Function string // sum avg max min count
	Field    string
	GroupBy  []string
	Having   string
}

// Transformation is one declarative post-processing step, applied in order.
type Transformation struct {
	Type    string // cast | format | derive
	Field   string
	Formula string // target type for cast, fmt verb for format, expression for derive
}

// TimeFilterConfig restricts results to a time window, either explicit
// (Start/End) or relative (Period).
type TimeFilterConfig struct {
	Field  string
	Period string // today | yesterday | this_month | last_month | this_year | last_7_days | last_30_days
	Start  string
	End    string
}

// Region match modes.
const (
	MatchExact      = "exact"
	MatchContains   = "contains"
	MatchStartsWith = "starts_with"
)

// RegionFilterConfig restricts results to a region value.
type RegionFilterConfig struct {
	Field     string
	Value     string
	MatchMode string // exact | contains | starts_with
}

// Instructions is a declarative, source-agnostic description of what to
// extract and how to shape it.
type Instructions struct {
	// ID identifies the instruction set (assigned by the planner)
	ID string

	// QueryType declares the query shape
	QueryType QueryType

	// Table is the source table the instructions run against
	Table string

	// Fields are the source fields to select
	Fields []string

	// Filters are declarative filter conditions
	Filters []Filter

	// Aggregations are the aggregation configs (aggregate queries)
	Aggregations []Aggregation

	// Transformations are applied in order after execution
	Transformations []Transformation

	// TimeConfig optionally restricts the time window
	TimeConfig *TimeFilterConfig

	// RegionConfig optionally restricts the region
	RegionConfig *RegionFilterConfig

	// OutputFormat declares the processed value's shape
	OutputFormat OutputFormat

	// PerformanceHints are free-text execution hints
	PerformanceHints []string
}

// ComplexityScore counts the moving parts of the instruction set; the
// confidence score degrades as it grows.
func (in *Instructions) ComplexityScore() int {
	return len(in.Filters) + len(in.Aggregations) + len(in.Transformations)
}

// ProcessedData is the terminal artifact of the declarative path.
type ProcessedData struct {
	// Raw is the unshaped query result
	Raw *adapter.ResultSet

	// Value is the processed value, shaped per the declared output format
	Value any

	// Metadata carries provenance and degradation flags
	Metadata map[string]any

	// Elapsed is the wall-clock execution time
	Elapsed time.Duration

	// Confidence is the 0-1 trust score for the result
	Confidence float64

	// Query is the query actually executed
	Query string

	// RowsProcessed is the number of raw rows processed
	RowsProcessed int
}
