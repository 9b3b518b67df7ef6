package planner

import (
	"strings"

	"github.com/kongusen/AutoReportAI-sub000/internal/match"
)

// Complexity is the three-bucket plan complexity label.
type Complexity string

// Complexity buckets.
const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Execution hints attached to a plan.
const (
	HintSequential = "sequential"
	HintParallel   = "parallel-merge"
)

// Plan is the structured query plan built from a context and its ranked
// candidates. Built once per request; immutable.
type Plan struct {
	// PrimaryTables are the top-ranked candidates the query is anchored on
	PrimaryTables []*match.Candidate

	// JoinTables are the remaining candidates joined to the primaries
	JoinTables []*match.Candidate

	// JoinConditions are rendered join condition expressions
	JoinConditions []string

	// WhereConditions are rendered filter expressions
	WhereConditions []string

	// SelectColumns are the rendered select expressions
	SelectColumns []string

	// GroupBy are the grouping columns
	GroupBy []string

	// OrderBy are the ordering expressions
	OrderBy []string

	// Complexity is the heuristic complexity bucket
	Complexity Complexity

	// CrossSource is true when the plan's tables span multiple sources
	CrossSource bool

	// ExecutionHint suggests how tasks should be dispatched
	ExecutionHint string

	// Fallback marks the minimal plan emitted when no candidate matched;
	// results built from it carry low confidence
	Fallback bool
}

// Tables returns all candidates, primaries first.
func (p *Plan) Tables() []*match.Candidate {
	out := make([]*match.Candidate, 0, len(p.PrimaryTables)+len(p.JoinTables))
	out = append(out, p.PrimaryTables...)
	out = append(out, p.JoinTables...)
	return out
}

// SourceIDs returns the distinct source ids among the plan's tables,
// in first-seen order.
func (p *Plan) SourceIDs() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range p.Tables() {
		if !seen[c.Table.SourceID] {
			seen[c.Table.SourceID] = true
			out = append(out, c.Table.SourceID)
		}
	}
	return out
}

// IsAggregateExpr reports whether a select expression is an aggregate or
// star expression (and therefore not bound to a single table's columns).
func IsAggregateExpr(expr string) bool {
	return expr == "*" || strings.Contains(expr, "(")
}
