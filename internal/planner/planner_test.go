package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/match"
	"github.com/kongusen/AutoReportAI-sub000/internal/semantic"
	"github.com/kongusen/AutoReportAI-sub000/internal/testutil"
)

func ordersTable(sourceID string) *catalog.TableSchema {
	return &catalog.TableSchema{
		SourceID: sourceID,
		Name:     "orders",
		Columns: []adapter.Column{
			{Name: "id"},
			{Name: "user_id"},
			{Name: "order_amount"},
			{Name: "created_at"},
		},
	}
}

func usersTable(sourceID string) *catalog.TableSchema {
	return &catalog.TableSchema{
		SourceID: sourceID,
		Name:     "users",
		Columns: []adapter.Column{
			{Name: "id"},
			{Name: "name"},
			{Name: "level"},
		},
	}
}

func TestPlanner_BuildAggregation(t *testing.T) {
	p := New(testutil.NewTestLogger(t))

	qc := &semantic.QueryContext{
		Intent:      semantic.IntentAggregation,
		Aggregation: "count",
		TimeRange:   "{column} >= CURRENT_DATE - INTERVAL '30' DAY",
		Filters:     map[string]string{"level": "VIP"},
	}
	candidates := []*match.Candidate{
		{Table: ordersTable("db1"), Score: 0.9},
		{Table: usersTable("db1"), Score: 0.7},
	}

	plan := p.Build(qc, candidates, "db1")

	require.Len(t, plan.PrimaryTables, 2)
	assert.Empty(t, plan.JoinTables)
	assert.False(t, plan.Fallback)
	assert.False(t, plan.CrossSource)
	assert.Equal(t, HintSequential, plan.ExecutionHint)

	// Convention join: users has no orders_id, orders has user_id.
	assert.Equal(t, []string{"users.id = orders.user_id"}, plan.JoinConditions)

	require.Len(t, plan.WhereConditions, 2)
	assert.Equal(t, "orders.created_at >= CURRENT_DATE - INTERVAL '30' DAY", plan.WhereConditions[0])
	assert.Equal(t, "users.level = 'VIP'", plan.WhereConditions[1])

	// COUNT needs no measure aggregate.
	assert.Equal(t, []string{"COUNT(*) AS total_count"}, plan.SelectColumns)
	assert.Empty(t, plan.GroupBy)
	assert.Equal(t, []string{"orders.created_at DESC"}, plan.OrderBy)
	assert.Equal(t, ComplexityMedium, plan.Complexity)
}

func TestPlanner_BuildSumAggregates(t *testing.T) {
	p := New(nil)

	qc := &semantic.QueryContext{
		Intent:      semantic.IntentStatistical,
		Aggregation: "sum",
	}
	plan := p.Build(qc, []*match.Candidate{{Table: ordersTable("db1"), Score: 0.9}}, "db1")

	assert.Equal(t, []string{
		"COUNT(*) AS total_count",
		"SUM(orders.order_amount) AS sum_order_amount",
	}, plan.SelectColumns)
	// Time column ordering wins over the aggregate alias.
	assert.Equal(t, []string{"orders.created_at DESC"}, plan.OrderBy)
	assert.Equal(t, ComplexityLow, plan.Complexity)
}

func TestPlanner_BuildDetail(t *testing.T) {
	p := New(nil)

	qc := &semantic.QueryContext{Intent: semantic.IntentDetail}
	candidates := []*match.Candidate{
		{Table: usersTable("db1"), Score: 0.8, MatchingColumns: []string{"name", "level"}},
	}
	plan := p.Build(qc, candidates, "db1")

	assert.Equal(t, []string{"users.name", "users.level"}, plan.SelectColumns)
	assert.Empty(t, plan.GroupBy)
}

func TestPlanner_Fallback(t *testing.T) {
	p := New(testutil.NewTestLogger(t))

	tests := []struct {
		name   string
		intent semantic.Intent
		want   []string
	}{
		{"statistical fallback counts", semantic.IntentStatistical, []string{"COUNT(*) AS total_count"}},
		{"detail fallback selects all", semantic.IntentDetail, []string{"*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := p.Build(&semantic.QueryContext{Intent: tt.intent}, nil, "db1")

			assert.True(t, plan.Fallback)
			require.Len(t, plan.PrimaryTables, 1)
			assert.Equal(t, FallbackTable, plan.PrimaryTables[0].Table.Name)
			assert.Equal(t, "db1", plan.PrimaryTables[0].Table.SourceID)
			assert.Equal(t, tt.want, plan.SelectColumns)
			assert.Equal(t, ComplexityLow, plan.Complexity)
		})
	}
}

func TestPlanner_CrossSource(t *testing.T) {
	p := New(nil)

	qc := &semantic.QueryContext{Intent: semantic.IntentDetail}
	candidates := []*match.Candidate{
		{Table: ordersTable("db1"), Score: 0.9},
		{Table: usersTable("db2"), Score: 0.8},
	}
	plan := p.Build(qc, candidates, "db1")

	assert.True(t, plan.CrossSource)
	assert.Equal(t, HintParallel, plan.ExecutionHint)
	assert.ElementsMatch(t, []string{"db1", "db2"}, plan.SourceIDs())
}

func TestPlanner_DeclaredRelationWins(t *testing.T) {
	p := New(nil)

	orders := ordersTable("db1")
	orders.Relations = []catalog.Relation{
		{LeftTable: "orders", LeftColumn: "user_id", RightTable: "users", RightColumn: "id"},
	}
	qc := &semantic.QueryContext{Intent: semantic.IntentDetail}
	plan := p.Build(qc, []*match.Candidate{
		{Table: orders, Score: 0.9},
		{Table: usersTable("db1"), Score: 0.8},
	}, "db1")

	assert.Equal(t, []string{"orders.user_id = users.id"}, plan.JoinConditions)
}

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		tables, joins int
		want          Complexity
	}{
		{1, 0, ComplexityLow},
		{2, 1, ComplexityMedium},
		{2, 2, ComplexityHigh},
		{3, 1, ComplexityHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyComplexity(tt.tables, tt.joins), "tables=%d joins=%d", tt.tables, tt.joins)
	}
}

func TestIsAggregateExpr(t *testing.T) {
	assert.True(t, IsAggregateExpr("COUNT(*) AS total_count"))
	assert.True(t, IsAggregateExpr("*"))
	assert.False(t, IsAggregateExpr("orders.id"))
}
