package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
	"github.com/kongusen/AutoReportAI-sub000/internal/etl/expr"
)

// Executor renders ETL instructions into SQL, runs them through a source
// adapter, applies the declared transformations, and shapes the result.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an ETL executor.
// If logger is nil, a discard logger is used.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{logger: logger}
}

// Execute validates the instructions against the table's columns, runs the
// rendered query, applies transformations in order, and reshapes the result
// per the declared output format. Referencing a field absent from the
// source is a malformed-input error.
func (e *Executor) Execute(ctx context.Context, ad adapter.Adapter, instr *Instructions) (*ProcessedData, error) {
	start := time.Now()

	meta, err := ad.DescribeTable(ctx, instr.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", instr.Table, err)
	}
	if err := validate(instr, meta); err != nil {
		return nil, err
	}

	query, err := renderQuery(instr)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("executing etl query",
		slog.String("instruction", instr.ID), slog.String("table", instr.Table))

	raw, err := ad.Execute(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("etl query failed: %w", err)
	}

	transformed, err := applyTransformations(raw, instr.Transformations)
	if err != nil {
		return nil, err
	}

	value, scalarNull := shape(transformed, instr.OutputFormat)

	pd := &ProcessedData{
		Raw:           raw,
		Value:         value,
		Metadata:      map[string]any{"table": instr.Table, "query_type": string(instr.QueryType)},
		Elapsed:       time.Since(start),
		Query:         query,
		RowsProcessed: raw.RowCount(),
	}
	pd.Confidence = scoreConfidence(instr, transformed, scalarNull)
	if scalarNull {
		pd.Metadata["scalar_null_default"] = true
	}

	return pd, nil
}

// validate checks that every referenced field exists in the table.
func validate(instr *Instructions, meta *adapter.TableMetadata) error {
	known := make(map[string]bool, len(meta.Columns))
	for _, c := range meta.Columns {
		known[c.Name] = true
	}

	check := func(field, where string) error {
		if field == "" || field == "*" || known[field] {
			return nil
		}
		return fmt.Errorf("field %q (%s) does not exist in table %s", field, where, instr.Table)
	}

	for _, f := range instr.Fields {
		if err := check(f, "fields"); err != nil {
			return err
		}
	}
	for _, f := range instr.Filters {
		if err := check(f.Field, "filter"); err != nil {
			return err
		}
	}
	for _, a := range instr.Aggregations {
		if err := check(a.Field, "aggregation"); err != nil {
			return err
		}
		for _, g := range a.GroupBy {
			if err := check(g, "group by"); err != nil {
				return err
			}
		}
	}
	if instr.TimeConfig != nil {
		if err := check(instr.TimeConfig.Field, "time filter"); err != nil {
			return err
		}
	}
	if instr.RegionConfig != nil {
		if err := check(instr.RegionConfig.Field, "region filter"); err != nil {
			return err
		}
	}
	return nil
}

// renderQuery renders the instructions as a SELECT statement.
func renderQuery(instr *Instructions) (string, error) {
	var selectCols, groupBy []string

	switch instr.QueryType {
	case QuerySelect:
		selectCols = instr.Fields
		if len(selectCols) == 0 {
			selectCols = []string{"*"}
		}
	case QueryAggregate, QuerySelectForChart:
		if len(instr.Aggregations) == 0 {
			return "", fmt.Errorf("aggregate instructions carry no aggregation config")
		}
		for _, agg := range instr.Aggregations {
			groupBy = appendUnique(groupBy, agg.GroupBy...)
		}
		selectCols = append(selectCols, groupBy...)
		for _, agg := range instr.Aggregations {
			selectCols = append(selectCols, renderAggregate(agg))
		}
	default:
		return "", fmt.Errorf("unknown query type %q", instr.QueryType)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectCols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(instr.Table)

	where := renderConditions(instr)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupBy, ", "))

		var having []string
		for _, agg := range instr.Aggregations {
			if agg.Having != "" {
				having = append(having, agg.Having)
			}
		}
		if len(having) > 0 {
			b.WriteString(" HAVING ")
			b.WriteString(strings.Join(having, " AND "))
		}
	}

	if instr.QueryType == QuerySelectForChart && len(groupBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(groupBy, ", "))
	}

	return b.String(), nil
}

// renderAggregate renders one aggregation as "FN(field) AS fn_field".
func renderAggregate(agg Aggregation) string {
	fn := strings.ToUpper(agg.Function)
	if agg.Field == "" || agg.Field == "*" {
		return "COUNT(*) AS total_count"
	}
	return fmt.Sprintf("%s(%s) AS %s_%s", fn, agg.Field, strings.ToLower(agg.Function), agg.Field)
}

// renderConditions renders filters plus the time and region configs.
func renderConditions(instr *Instructions) []string {
	var out []string

	for _, f := range instr.Filters {
		op := f.Operator
		if op == "" {
			op = "="
		}
		out = append(out, fmt.Sprintf("%s %s %s", f.Field, op, renderValue(f.Value)))
	}

	if tc := instr.TimeConfig; tc != nil {
		if tc.Start != "" && tc.End != "" {
			out = append(out,
				fmt.Sprintf("%s >= '%s'", tc.Field, tc.Start),
				fmt.Sprintf("%s <= '%s'", tc.Field, tc.End))
		} else if cond := renderPeriod(tc.Field, tc.Period); cond != "" {
			out = append(out, cond)
		}
	}

	if rc := instr.RegionConfig; rc != nil {
		switch rc.MatchMode {
		case MatchContains:
			out = append(out, fmt.Sprintf("%s LIKE '%%%s%%'", rc.Field, rc.Value))
		case MatchStartsWith:
			out = append(out, fmt.Sprintf("%s LIKE '%s%%'", rc.Field, rc.Value))
		default:
			out = append(out, fmt.Sprintf("%s = '%s'", rc.Field, rc.Value))
		}
	}

	return out
}

// renderPeriod renders a relative period as a SQL condition.
func renderPeriod(field, period string) string {
	switch period {
	case "today":
		return fmt.Sprintf("%s >= CURRENT_DATE", field)
	case "yesterday":
		return fmt.Sprintf("%s >= CURRENT_DATE - INTERVAL '1' DAY AND %s < CURRENT_DATE", field, field)
	case "this_month":
		return fmt.Sprintf("%s >= DATE_TRUNC('month', CURRENT_DATE)", field)
	case "last_month":
		return fmt.Sprintf("%s >= DATE_TRUNC('month', CURRENT_DATE - INTERVAL '1' MONTH) AND %s < DATE_TRUNC('month', CURRENT_DATE)", field, field)
	case "this_year":
		return fmt.Sprintf("%s >= DATE_TRUNC('year', CURRENT_DATE)", field)
	case "last_7_days":
		return fmt.Sprintf("%s >= CURRENT_DATE - INTERVAL '7' DAY", field)
	case "last_30_days":
		return fmt.Sprintf("%s >= CURRENT_DATE - INTERVAL '30' DAY", field)
	default:
		return ""
	}
}

// renderValue renders a filter value as a SQL literal.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("'%v'", val)
	}
}

// applyTransformations runs the declared transformations in order over a
// copy of the result set.
func applyTransformations(rs *adapter.ResultSet, transformations []Transformation) (*adapter.ResultSet, error) {
	if len(transformations) == 0 {
		return rs, nil
	}

	out := &adapter.ResultSet{
		Columns: append([]string{}, rs.Columns...),
		Rows:    make([][]any, len(rs.Rows)),
	}
	for i, row := range rs.Rows {
		out.Rows[i] = append([]any{}, row...)
	}

	for _, tr := range transformations {
		var err error
		switch tr.Type {
		case "cast":
			err = applyCast(out, tr)
		case "format":
			err = applyFormat(out, tr)
		case "derive":
			err = applyDerive(out, tr)
		default:
			err = fmt.Errorf("unknown transformation type %q", tr.Type)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// applyCast converts a column's values to the target type named in Formula.
func applyCast(rs *adapter.ResultSet, tr Transformation) error {
	idx := columnIndex(rs, tr.Field)
	if idx < 0 {
		return fmt.Errorf("cast: column %q not in result", tr.Field)
	}

	for _, row := range rs.Rows {
		if row[idx] == nil {
			continue
		}
		switch tr.Formula {
		case "int":
			n, err := toFloat(row[idx])
			if err != nil {
				return fmt.Errorf("cast %q to int: %w", tr.Field, err)
			}
			row[idx] = int64(n)
		case "float":
			n, err := toFloat(row[idx])
			if err != nil {
				return fmt.Errorf("cast %q to float: %w", tr.Field, err)
			}
			row[idx] = n
		case "string":
			row[idx] = fmt.Sprintf("%v", row[idx])
		default:
			return fmt.Errorf("cast: unknown target type %q", tr.Formula)
		}
	}
	return nil
}

// applyFormat formats a column's values with the fmt verb in Formula.
func applyFormat(rs *adapter.ResultSet, tr Transformation) error {
	idx := columnIndex(rs, tr.Field)
	if idx < 0 {
		return fmt.Errorf("format: column %q not in result", tr.Field)
	}
	for _, row := range rs.Rows {
		if row[idx] != nil {
			row[idx] = fmt.Sprintf(tr.Formula, row[idx])
		}
	}
	return nil
}

// applyDerive evaluates the restricted formula per row and appends the
// result as a new column named by Field.
func applyDerive(rs *adapter.ResultSet, tr Transformation) error {
	node, err := expr.Parse(tr.Formula)
	if err != nil {
		return fmt.Errorf("derive %q: %w", tr.Field, err)
	}

	rs.Columns = append(rs.Columns, tr.Field)
	for i, row := range rs.Rows {
		val, err := node.Eval(rowMap(rs.Columns[:len(rs.Columns)-1], row))
		if err != nil {
			return fmt.Errorf("derive %q at row %d: %w", tr.Field, i, err)
		}
		rs.Rows[i] = append(row, val)
	}
	return nil
}

// shape reshapes the result per the declared output format. The second
// return reports a scalar-expected-but-null outcome (the value is replaced
// by an empty-safe 0).
func shape(rs *adapter.ResultSet, format OutputFormat) (any, bool) {
	switch format {
	case OutputScalar:
		if rs.RowCount() == 0 || len(rs.Columns) == 0 || rs.Rows[0][0] == nil {
			return 0, true
		}
		return rs.Rows[0][0], false

	case OutputArray:
		if len(rs.Columns) == 1 {
			out := make([]any, len(rs.Rows))
			for i, row := range rs.Rows {
				out[i] = row[0]
			}
			return out, false
		}
		out := make([]map[string]any, len(rs.Rows))
		for i := range rs.Rows {
			out[i] = rs.RowMap(i)
		}
		return out, false

	case OutputJSON:
		rows := make([]map[string]any, len(rs.Rows))
		for i := range rs.Rows {
			rows[i] = rs.RowMap(i)
		}
		encoded, err := json.Marshal(rows)
		if err != nil {
			return "[]", false
		}
		return string(encoded), false

	case OutputDataframe:
		return map[string]any{"columns": rs.Columns, "rows": rs.Rows}, false

	default:
		return rs, false
	}
}

// appendUnique appends items not already present, keeping first-seen order.
func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		seen := false
		for _, d := range dst {
			if d == item {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, item)
		}
	}
	return dst
}

func columnIndex(rs *adapter.ResultSet, name string) int {
	for i, c := range rs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func rowMap(columns []string, row []any) map[string]any {
	m := make(map[string]any, len(columns))
	for i, c := range columns {
		if i < len(row) {
			m[c] = row[i]
		}
	}
	return m
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("value of type %T is not numeric", v)
	}
}
