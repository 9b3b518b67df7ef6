// Package sqlgen renders a query plan into one or more executable query
// tasks, splitting by originating source when the plan spans databases, and
// post-processes the task list with cost-based ordering and hints.
package sqlgen

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/match"
	"github.com/kongusen/AutoReportAI-sub000/internal/planner"
)

// Task priorities; lower runs first.
const (
	PriorityHigh   = 1
	PriorityNormal = 2
	PriorityLow    = 3
)

// Task is one rendered query against one source. A cross-source plan fans
// out to one task per source; its SQL references only tables belonging to
// that source.
type Task struct {
	// SourceID identifies the owning source
	SourceID string

	// SourceName is the source's display name
	SourceName string

	// Candidates are the plan candidates this task owns
	Candidates []*match.Candidate

	// SQL is the fully rendered query
	SQL string

	// Priority orders execution (1=high .. 3=low)
	Priority int
}

// JoinCount returns the number of JOIN clauses in the task's SQL.
func (t *Task) JoinCount() int {
	return strings.Count(strings.ToUpper(t.SQL), " JOIN ")
}

// RowEstimate sums the row-count hints of the task's tables.
func (t *Task) RowEstimate() int64 {
	var rows int64
	for _, c := range t.Candidates {
		rows += c.Table.RowCount
	}
	return rows
}

// Generator renders plans into tasks.
type Generator struct {
	registry *catalog.Registry
	logger   *slog.Logger
}

// NewGenerator creates a generator.
// If logger is nil, a discard logger is used.
func NewGenerator(registry *catalog.Registry, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{registry: registry, logger: logger}
}

// Generate renders the plan. Single-source plans produce exactly one task;
// cross-source plans produce one task per distinct source.
func (g *Generator) Generate(plan *planner.Plan) []*Task {
	if !plan.CrossSource {
		return []*Task{g.renderSingle(plan)}
	}
	return g.renderCrossSource(plan)
}

// renderSingle renders the whole plan as one SELECT.
func (g *Generator) renderSingle(plan *planner.Plan) *Task {
	tables := plan.Tables()
	sourceID := tables[0].Table.SourceID

	sql := renderSelect(
		plan.SelectColumns,
		tables,
		plan.JoinConditions,
		plan.WhereConditions,
		plan.GroupBy,
		plan.OrderBy,
	)

	return &Task{
		SourceID:   sourceID,
		SourceName: g.sourceName(sourceID),
		Candidates: tables,
		SQL:        sql,
		Priority:   PriorityHigh,
	}
}

// renderCrossSource groups candidates by source and renders a SELECT per
// group limited to in-group columns, joins, and conditions.
func (g *Generator) renderCrossSource(plan *planner.Plan) []*Task {
	groups := make(map[string][]*match.Candidate)
	var order []string
	for _, c := range plan.Tables() {
		id := c.Table.SourceID
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], c)
	}

	primaries := make(map[string]bool)
	for _, c := range plan.PrimaryTables {
		primaries[c.Table.Name] = true
	}

	allTables := tableNames(plan.Tables())

	var tasks []*Task
	for _, sourceID := range order {
		group := groups[sourceID]
		inGroup := make(map[string]bool)
		for _, c := range group {
			inGroup[c.Table.Name] = true
		}

		selectCols := filterSelectColumns(plan.SelectColumns, inGroup)
		joins := filterConditions(plan.JoinConditions, allTables, inGroup, false)
		wheres := filterConditions(plan.WhereConditions, allTables, inGroup, true)
		groupBy := filterSelectColumns(plan.GroupBy, inGroup)

		priority := PriorityNormal
		for _, c := range group {
			if primaries[c.Table.Name] {
				priority = PriorityHigh
				break
			}
		}

		tasks = append(tasks, &Task{
			SourceID:   sourceID,
			SourceName: g.sourceName(sourceID),
			Candidates: group,
			SQL:        renderSelect(selectCols, group, joins, wheres, groupBy, nil),
			Priority:   priority,
		})
	}

	g.logger.Debug("decomposed cross-source plan", slog.Int("tasks", len(tasks)))
	return tasks
}

// renderSelect assembles SELECT/FROM/JOIN/WHERE/GROUP BY/ORDER BY in that
// fixed order.
func renderSelect(selectCols []string, tables []*match.Candidate, joins, wheres, groupBy, orderBy []string) string {
	var b strings.Builder

	if len(selectCols) == 0 {
		selectCols = []string{"*"}
	}
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectCols, ", "))

	b.WriteString(" FROM ")
	b.WriteString(tables[0].Table.Name)

	// Tables after the first are attached through their join condition when
	// one references them, else as an explicit cross join.
	joined := map[string]bool{tables[0].Table.Name: true}
	remaining := append([]string{}, joins...)
	for _, c := range tables[1:] {
		name := c.Table.Name
		if joined[name] {
			continue
		}
		joined[name] = true

		attached := false
		for i, cond := range remaining {
			if strings.Contains(cond, name+".") {
				b.WriteString(fmt.Sprintf(" JOIN %s ON %s", name, cond))
				remaining = append(remaining[:i], remaining[i+1:]...)
				attached = true
				break
			}
		}
		if !attached {
			b.WriteString(" CROSS JOIN " + name)
		}
	}

	if len(wheres) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(wheres, " AND "))
	}
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupBy, ", "))
	}
	if len(orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orderBy, ", "))
	}

	return b.String()
}

// filterSelectColumns keeps expressions owned by an in-group table plus pure
// aggregate and star expressions, which are source-agnostic.
func filterSelectColumns(cols []string, inGroup map[string]bool) []string {
	var out []string
	for _, col := range cols {
		if planner.IsAggregateExpr(col) && ownedBy(col) == "" {
			out = append(out, col)
			continue
		}
		owner := ownedBy(col)
		if owner == "" || inGroup[owner] {
			out = append(out, col)
		}
	}
	return out
}

// filterConditions keeps conditions whose referenced tables are all in the
// group. When allowUnqualified is set, conditions referencing no known table
// at all (source-agnostic filters) are kept too.
func filterConditions(conds []string, allTables map[string]bool, inGroup map[string]bool, allowUnqualified bool) []string {
	var out []string
	for _, cond := range conds {
		referenced := referencedTables(cond, allTables)
		if len(referenced) == 0 {
			if allowUnqualified {
				out = append(out, cond)
			}
			continue
		}
		all := true
		for _, t := range referenced {
			if !inGroup[t] {
				all = false
				break
			}
		}
		if all {
			out = append(out, cond)
		}
	}
	return out
}

// ownedBy returns the "table." prefix owner of an expression, or empty.
func ownedBy(expr string) string {
	// Strip an aggregate wrapper so SUM(orders.amount) resolves to orders.
	inner := expr
	if i := strings.Index(expr, "("); i >= 0 {
		if j := strings.Index(expr, ")"); j > i {
			inner = expr[i+1 : j]
		}
	}
	if i := strings.Index(inner, "."); i > 0 {
		owner := inner[:i]
		if owner != "" && !strings.ContainsAny(owner, " ()*") {
			return owner
		}
	}
	return ""
}

// referencedTables lists the known tables a condition references.
func referencedTables(cond string, allTables map[string]bool) []string {
	var out []string
	for name := range allTables {
		if strings.Contains(cond, name+".") {
			out = append(out, name)
		}
	}
	return out
}

func tableNames(candidates []*match.Candidate) map[string]bool {
	out := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		out[c.Table.Name] = true
	}
	return out
}

func (g *Generator) sourceName(sourceID string) string {
	if src, ok := g.registry.Source(sourceID); ok && src.Name != "" {
		return src.Name
	}
	return sourceID
}
