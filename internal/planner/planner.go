// Package planner builds a structured query plan from a query context and
// its ranked table candidates: primary and join tables, join conditions,
// filters, projection, grouping, ordering, and a cross-source flag.
package planner

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/match"
	"github.com/kongusen/AutoReportAI-sub000/internal/semantic"
)

// FallbackTable is the generic placeholder table used when no candidate
// matched. The resulting plan is well-formed but low-confidence.
const FallbackTable = "data_table"

// maxDetailColumns bounds the matched columns projected per table for
// non-aggregate intents.
const maxDetailColumns = 5

// Planner builds query plans.
type Planner struct {
	logger *slog.Logger
}

// New creates a planner.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{logger: logger}
}

// Build constructs a plan for the context and candidates. A nil or empty
// candidate list never fails: it yields the minimal fallback plan against
// FallbackTable so the pipeline degrades instead of raising.
func (p *Planner) Build(qc *semantic.QueryContext, candidates []*match.Candidate, sourceID string) *Plan {
	if len(candidates) == 0 {
		p.logger.Info("no candidate tables, building fallback plan", slog.String("source", sourceID))
		return p.buildFallback(qc, sourceID)
	}

	plan := &Plan{}

	// Top 1-2 candidates anchor the query; the rest become join tables.
	primaryCount := 1
	if len(candidates) > 1 {
		primaryCount = 2
	}
	plan.PrimaryTables = candidates[:primaryCount]
	plan.JoinTables = candidates[primaryCount:]

	plan.JoinConditions = p.resolveJoins(plan)
	plan.WhereConditions = p.buildWhere(qc, plan)
	plan.SelectColumns = p.buildSelect(qc, plan)
	plan.GroupBy = p.buildGroupBy(qc, plan.SelectColumns)
	plan.OrderBy = p.buildOrderBy(plan)
	plan.Complexity = classifyComplexity(len(plan.Tables()), len(plan.JoinConditions))
	plan.CrossSource = len(plan.SourceIDs()) > 1

	if plan.CrossSource {
		plan.ExecutionHint = HintParallel
	} else {
		plan.ExecutionHint = HintSequential
	}

	p.logger.Debug("built plan",
		slog.Int("primary_tables", len(plan.PrimaryTables)),
		slog.Int("join_tables", len(plan.JoinTables)),
		slog.String("complexity", string(plan.Complexity)),
		slog.Bool("cross_source", plan.CrossSource))

	return plan
}

// buildFallback emits the minimal COUNT-style plan against the placeholder
// table.
func (p *Planner) buildFallback(qc *semantic.QueryContext, sourceID string) *Plan {
	placeholder := &match.Candidate{
		Table:           &catalog.TableSchema{SourceID: sourceID, Name: FallbackTable},
		Score:           0.1,
		BusinessContext: "fallback: no candidate tables matched",
	}

	selectCols := []string{"COUNT(*) AS total_count"}
	if qc.Intent == semantic.IntentDetail {
		selectCols = []string{"*"}
	}

	return &Plan{
		PrimaryTables: []*match.Candidate{placeholder},
		SelectColumns: selectCols,
		Complexity:    ComplexityLow,
		ExecutionHint: HintSequential,
		Fallback:      true,
	}
}

// resolveJoins renders one join condition per join table against the primary
// tables. Declared relations win; otherwise the <table>_id naming convention
// is tried in both directions.
func (p *Planner) resolveJoins(plan *Plan) []string {
	var conditions []string

	// Pair the second primary with the first, when present.
	if len(plan.PrimaryTables) == 2 {
		a, b := plan.PrimaryTables[0].Table, plan.PrimaryTables[1].Table
		if cond := declaredRelation(a, b); cond != "" {
			conditions = append(conditions, cond)
		} else if cond := conventionJoin(a, b); cond != "" {
			conditions = append(conditions, cond)
		}
	}

	for _, join := range plan.JoinTables {
		cond := ""
		for _, primary := range plan.PrimaryTables {
			if cond = declaredRelation(primary.Table, join.Table); cond != "" {
				break
			}
			if cond = conventionJoin(primary.Table, join.Table); cond != "" {
				break
			}
		}
		if cond != "" {
			conditions = append(conditions, cond)
		}
	}
	return conditions
}

// declaredRelation returns the rendered condition of an explicitly declared
// relation between the two tables, or empty.
func declaredRelation(a, b *catalog.TableSchema) string {
	for _, t := range []*catalog.TableSchema{a, b} {
		for _, rel := range t.Relations {
			if (rel.LeftTable == a.Name && rel.RightTable == b.Name) ||
				(rel.LeftTable == b.Name && rel.RightTable == a.Name) {
				return fmt.Sprintf("%s.%s = %s.%s",
					rel.LeftTable, rel.LeftColumn, rel.RightTable, rel.RightColumn)
			}
		}
	}
	return ""
}

// conventionJoin infers a join from the <table>_id naming convention: a
// column named like the other table (plural or singular) plus "_id",
// paired with that table's "id" column.
func conventionJoin(a, b *catalog.TableSchema) string {
	for _, fk := range fkCandidates(a.Name) {
		if b.HasColumn(fk) && a.HasColumn("id") {
			return fmt.Sprintf("%s.id = %s.%s", a.Name, b.Name, fk)
		}
	}
	for _, fk := range fkCandidates(b.Name) {
		if a.HasColumn(fk) && b.HasColumn("id") {
			return fmt.Sprintf("%s.id = %s.%s", b.Name, a.Name, fk)
		}
	}
	return ""
}

// fkCandidates lists the foreign-key column names conventionally referring
// to the named table: "users" yields users_id and user_id.
func fkCandidates(table string) []string {
	out := []string{table + "_id"}
	if singular := strings.TrimSuffix(table, "s"); singular != table {
		out = append(out, singular+"_id")
	}
	return out
}

// buildWhere assembles conditions from the context's time range and filters.
func (p *Planner) buildWhere(qc *semantic.QueryContext, plan *Plan) []string {
	var conditions []string

	if qc.TimeRange != "" {
		if table, col := p.findDateColumn(plan); col != "" {
			rendered := strings.ReplaceAll(qc.TimeRange, "{column}", table+"."+col)
			conditions = append(conditions, rendered)
		}
	}

	keys := make([]string, 0, len(qc.Filters))
	for k := range qc.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := qc.Filters[key]
		qualified := key
		for _, c := range plan.Tables() {
			if c.Table.HasColumn(key) {
				qualified = c.Table.Name + "." + key
				break
			}
		}
		conditions = append(conditions, fmt.Sprintf("%s = '%s'", qualified, value))
	}

	return conditions
}

// findDateColumn returns the first primary (then join) table with a detected
// date column.
func (p *Planner) findDateColumn(plan *Plan) (table, column string) {
	for _, c := range plan.Tables() {
		if col := c.Table.DateColumn(); col != "" {
			return c.Table.Name, col
		}
	}
	return "", ""
}

// buildSelect renders the projection. Statistical and aggregation intents
// project COUNT(*) plus one aggregate per inferred function over measure
// columns; other intents project up to maxDetailColumns matched columns
// per table.
func (p *Planner) buildSelect(qc *semantic.QueryContext, plan *Plan) []string {
	if qc.Intent == semantic.IntentStatistical || qc.Intent == semantic.IntentAggregation {
		cols := []string{"COUNT(*) AS total_count"}
		cols = append(cols, p.aggregateExprs(qc, plan)...)
		return cols
	}

	var cols []string
	for _, c := range plan.Tables() {
		n := 0
		for _, col := range c.MatchingColumns {
			if n >= maxDetailColumns {
				break
			}
			cols = append(cols, c.Table.Name+"."+col)
			n++
		}
	}
	if len(cols) == 0 {
		cols = []string{"*"}
	}
	return cols
}

// aggregateExprs renders one aggregate expression per measure column for
// the context's inferred function. COUNT needs no measure column and is
// already covered by COUNT(*).
func (p *Planner) aggregateExprs(qc *semantic.QueryContext, plan *Plan) []string {
	fn := strings.ToUpper(qc.Aggregation)
	if fn == "" || fn == "COUNT" {
		return nil
	}

	var exprs []string
	for _, c := range plan.PrimaryTables {
		for _, col := range c.Table.MeasureColumns() {
			exprs = append(exprs, fmt.Sprintf("%s(%s.%s) AS %s_%s",
				fn, c.Table.Name, col, strings.ToLower(fn), col))
		}
	}
	return exprs
}

// buildGroupBy returns the non-aggregate select columns for statistical and
// aggregation intents.
func (p *Planner) buildGroupBy(qc *semantic.QueryContext, selectCols []string) []string {
	if qc.Intent != semantic.IntentStatistical && qc.Intent != semantic.IntentAggregation {
		return nil
	}

	var groupBy []string
	for _, col := range selectCols {
		if !IsAggregateExpr(col) {
			groupBy = append(groupBy, col)
		}
	}
	return groupBy
}

// buildOrderBy prefers a detected time column descending, else the first
// aggregate expression descending.
func (p *Planner) buildOrderBy(plan *Plan) []string {
	if table, col := p.findDateColumn(plan); col != "" {
		return []string{fmt.Sprintf("%s.%s DESC", table, col)}
	}
	for _, expr := range plan.SelectColumns {
		if expr != "*" && IsAggregateExpr(expr) {
			return []string{aggregateAlias(expr) + " DESC"}
		}
	}
	return nil
}

// aggregateAlias extracts the alias of an "expr AS alias" expression,
// falling back to the expression itself.
func aggregateAlias(expr string) string {
	if i := strings.LastIndex(strings.ToUpper(expr), " AS "); i >= 0 {
		return expr[i+len(" AS "):]
	}
	return expr
}

// classifyComplexity buckets a plan by table and join counts.
func classifyComplexity(tables, joins int) Complexity {
	switch {
	case tables <= 1 && joins == 0:
		return ComplexityLow
	case tables <= 2 && joins <= 1:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}
