package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

func TestMergeResults_Single(t *testing.T) {
	rs := &adapter.ResultSet{Columns: []string{"a"}, Rows: [][]any{{1}}}

	merged, strategy := mergeResults([]*adapter.ResultSet{rs})
	assert.Same(t, rs, merged)
	assert.Equal(t, mergeStrategySingle, strategy)
}

func TestMergeResults_SharedColumnJoin(t *testing.T) {
	left := &adapter.ResultSet{
		Columns: []string{"user_id", "order_total"},
		Rows: [][]any{
			{1, 100},
			{2, 250},
			{3, 75},
		},
	}
	right := &adapter.ResultSet{
		Columns: []string{"user_id", "level"},
		Rows: [][]any{
			{1, "VIP"},
			{2, "basic"},
			{9, "VIP"},
		},
	}

	merged, strategy := mergeResults([]*adapter.ResultSet{left, right})
	assert.Equal(t, mergeStrategyJoin, strategy)
	assert.Equal(t, []string{"user_id", "order_total", "level"}, merged.Columns)

	// Outer join: 2 matched, 1 left-only (padded level), 1 right-only
	// (padded order_total).
	require.Len(t, merged.Rows, 4)
	assert.Equal(t, []any{1, 100, "VIP"}, merged.Rows[0])
	assert.Equal(t, []any{2, 250, "basic"}, merged.Rows[1])
	assert.Equal(t, []any{3, 75, nil}, merged.Rows[2])
	assert.Equal(t, []any{9, nil, "VIP"}, merged.Rows[3])
}

func TestMergeResults_ConcatWhenNoSharedColumns(t *testing.T) {
	a := &adapter.ResultSet{Columns: []string{"x"}, Rows: [][]any{{1}, {2}}}
	b := &adapter.ResultSet{Columns: []string{"y"}, Rows: [][]any{{"p"}}}

	merged, strategy := mergeResults([]*adapter.ResultSet{a, b})
	assert.Equal(t, mergeStrategyConcat, strategy)
	assert.Equal(t, []string{"x", "y"}, merged.Columns)
	require.Len(t, merged.Rows, 3)
	assert.Equal(t, []any{1, nil}, merged.Rows[0])
	assert.Equal(t, []any{2, nil}, merged.Rows[1])
	assert.Equal(t, []any{nil, "p"}, merged.Rows[2])
}

func TestMergeResults_MixedStrategy(t *testing.T) {
	a := &adapter.ResultSet{Columns: []string{"id", "v"}, Rows: [][]any{{1, "a"}}}
	b := &adapter.ResultSet{Columns: []string{"id", "w"}, Rows: [][]any{{1, "b"}}}
	c := &adapter.ResultSet{Columns: []string{"z"}, Rows: [][]any{{"c"}}}

	merged, strategy := mergeResults([]*adapter.ResultSet{a, b, c})
	assert.Equal(t, mergeStrategyMixed, strategy)
	assert.Equal(t, []string{"id", "v", "w", "z"}, merged.Columns)
	require.Len(t, merged.Rows, 2)
}

func TestMergeResults_JoinOnFullSharedColumnSet(t *testing.T) {
	// Two shared columns: a row matches only when BOTH agree.
	left := &adapter.ResultSet{
		Columns: []string{"region", "day", "sales"},
		Rows:    [][]any{{"east", "mon", 10}},
	}
	right := &adapter.ResultSet{
		Columns: []string{"region", "day", "visits"},
		Rows: [][]any{
			{"east", "mon", 5},
			{"east", "tue", 7},
		},
	}

	merged, _ := mergeResults([]*adapter.ResultSet{left, right})
	require.Len(t, merged.Rows, 2)
	assert.Equal(t, []any{"east", "mon", 10, 5}, merged.Rows[0])
	assert.Equal(t, []any{"east", "tue", nil, 7}, merged.Rows[1])
}

func TestSharedColumns(t *testing.T) {
	a := &adapter.ResultSet{Columns: []string{"x", "y", "z"}}
	b := &adapter.ResultSet{Columns: []string{"z", "x"}}
	assert.Equal(t, []string{"x", "z"}, sharedColumns(a, b))
}
