package executor

import (
	"fmt"
	"strings"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

// Merge strategy labels reported in result stats.
const (
	mergeStrategySingle = "single"
	mergeStrategyJoin   = "shared-column-join"
	mergeStrategyConcat = "row-concat"
	mergeStrategyMixed  = "mixed"
)

// mergeResults progressively combines result sets, left to right in task
// priority order. When two sets share column names they are outer-joined on
// the FULL set of shared columns discovered at that step; otherwise their
// rows are concatenated over the column union.
//
// This is a best-effort heuristic, not a correctness guarantee: true schema
// reconciliation across heterogeneous sources is out of scope.
func mergeResults(sets []*adapter.ResultSet) (*adapter.ResultSet, string) {
	if len(sets) == 1 {
		return sets[0], mergeStrategySingle
	}

	acc := sets[0]
	var strategies []string
	for _, next := range sets[1:] {
		shared := sharedColumns(acc, next)
		if len(shared) > 0 {
			acc = outerJoin(acc, next, shared)
			strategies = append(strategies, mergeStrategyJoin)
		} else {
			acc = concatRows(acc, next)
			strategies = append(strategies, mergeStrategyConcat)
		}
	}

	strategy := strategies[0]
	for _, s := range strategies[1:] {
		if s != strategy {
			strategy = mergeStrategyMixed
			break
		}
	}
	return acc, strategy
}

// sharedColumns returns the column names present in both sets, in a's order.
func sharedColumns(a, b *adapter.ResultSet) []string {
	inB := make(map[string]bool, len(b.Columns))
	for _, c := range b.Columns {
		inB[c] = true
	}
	var shared []string
	for _, c := range a.Columns {
		if inB[c] {
			shared = append(shared, c)
		}
	}
	return shared
}

// outerJoin combines two sets on their shared columns. Rows unmatched on
// either side are kept, padded with nils for the other side's columns.
// Left rows take precedence in column ordering.
func outerJoin(left, right *adapter.ResultSet, shared []string) *adapter.ResultSet {
	out := &adapter.ResultSet{Columns: unionColumns(left.Columns, right.Columns)}

	rightOnly := subtractColumns(right.Columns, left.Columns)

	// Index right rows by their shared-column key.
	rightIdx := make(map[string][][]any)
	for i := range right.Rows {
		key := rowKey(right.RowMap(i), shared)
		rightIdx[key] = append(rightIdx[key], right.Rows[i])
	}
	matched := make(map[string]bool)

	for i := range left.Rows {
		lm := left.RowMap(i)
		key := rowKey(lm, shared)

		if partners, ok := rightIdx[key]; ok {
			matched[key] = true
			for _, partner := range partners {
				rm := rowAsMap(right.Columns, partner)
				out.Rows = append(out.Rows, buildRow(out.Columns, lm, rm))
			}
		} else {
			out.Rows = append(out.Rows, buildRow(out.Columns, lm, nil))
		}
	}

	// Right rows with no left partner, padded on the left side.
	for i := range right.Rows {
		rm := right.RowMap(i)
		if matched[rowKey(rm, shared)] {
			continue
		}
		merged := make(map[string]any, len(shared)+len(rightOnly))
		for _, c := range shared {
			merged[c] = rm[c]
		}
		for _, c := range rightOnly {
			merged[c] = rm[c]
		}
		out.Rows = append(out.Rows, buildRow(out.Columns, merged, nil))
	}

	return out
}

// concatRows appends the rows of both sets over their column union.
func concatRows(a, b *adapter.ResultSet) *adapter.ResultSet {
	out := &adapter.ResultSet{Columns: unionColumns(a.Columns, b.Columns)}
	for i := range a.Rows {
		out.Rows = append(out.Rows, buildRow(out.Columns, a.RowMap(i), nil))
	}
	for i := range b.Rows {
		out.Rows = append(out.Rows, buildRow(out.Columns, b.RowMap(i), nil))
	}
	return out
}

// buildRow projects the merged maps onto the output column order. Values in
// primary win over values in secondary.
func buildRow(columns []string, primary, secondary map[string]any) []any {
	row := make([]any, len(columns))
	for i, c := range columns {
		if v, ok := primary[c]; ok {
			row[i] = v
		} else if secondary != nil {
			row[i] = secondary[c]
		}
	}
	return row
}

// rowKey renders a deterministic join key from the shared column values.
func rowKey(row map[string]any, shared []string) string {
	parts := make([]string, len(shared))
	for i, c := range shared {
		parts[i] = fmt.Sprintf("%v", row[c])
	}
	return strings.Join(parts, "\x1f")
}

func rowAsMap(columns []string, row []any) map[string]any {
	m := make(map[string]any, len(columns))
	for i, c := range columns {
		if i < len(row) {
			m[c] = row[i]
		}
	}
	return m
}

func unionColumns(a, b []string) []string {
	out := append([]string{}, a...)
	seen := make(map[string]bool, len(a))
	for _, c := range a {
		seen[c] = true
	}
	for _, c := range b {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func subtractColumns(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, c := range b {
		inB[c] = true
	}
	var out []string
	for _, c := range a {
		if !inB[c] {
			out = append(out, c)
		}
	}
	return out
}
