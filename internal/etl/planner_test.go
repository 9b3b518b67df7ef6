package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
	"github.com/kongusen/AutoReportAI-sub000/internal/testutil"
)

var orderFields = []adapter.Column{
	{Name: "id"},
	{Name: "order_amount"},
	{Name: "region"},
	{Name: "created_at"},
}

func TestPlanner_PlanStatistical(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	tests := []struct {
		name        string
		description string
		wantFn      string
		wantField   string
	}{
		{"count by default", "订单数量", "count", "*"},
		{"sum from total keyword", "total order amount", "sum", "order_amount"},
		{"average", "平均金额", "avg", "order_amount"},
		{"max", "最高金额", "max", "order_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instr, err := p.Plan(Requirement{
				Category:    CategoryStatistical,
				Description: tt.description,
				Table:       "orders",
			}, orderFields)
			require.NoError(t, err)

			assert.NotEmpty(t, instr.ID)
			assert.Equal(t, "orders", instr.Table)
			assert.Equal(t, QueryAggregate, instr.QueryType)
			assert.Equal(t, OutputScalar, instr.OutputFormat)
			require.Len(t, instr.Aggregations, 1)
			assert.Equal(t, tt.wantFn, instr.Aggregations[0].Function)
			assert.Equal(t, tt.wantField, instr.Aggregations[0].Field)
		})
	}
}

func TestPlanner_PlanStatisticalNoMeasure(t *testing.T) {
	p := NewPlanner(nil)

	_, err := p.Plan(Requirement{
		Category:    CategoryStatistical,
		Description: "sum of something",
		Table:       "plain",
	}, []adapter.Column{{Name: "id"}, {Name: "label"}})
	assert.ErrorContains(t, err, "no measure field")
}

func TestPlanner_PlanChart(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	instr, err := p.Plan(Requirement{
		Category:    CategoryChart,
		Description: "每日订单总额走势",
		Table:       "orders",
	}, orderFields)
	require.NoError(t, err)

	assert.Equal(t, QuerySelectForChart, instr.QueryType)
	assert.Equal(t, OutputDataframe, instr.OutputFormat)
	assert.Equal(t, []string{"created_at"}, instr.Fields)
	require.Len(t, instr.Aggregations, 1)
	assert.Equal(t, "sum", instr.Aggregations[0].Function)
	assert.Equal(t, "order_amount", instr.Aggregations[0].Field)
	assert.Equal(t, []string{"created_at"}, instr.Aggregations[0].GroupBy)
}

func TestPlanner_PlanChartFallsBackToRegion(t *testing.T) {
	p := NewPlanner(nil)

	instr, err := p.Plan(Requirement{
		Category:    CategoryChart,
		Description: "counts per region",
		Table:       "stats",
	}, []adapter.Column{{Name: "region"}, {Name: "value_total"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"region"}, instr.Aggregations[0].GroupBy)
}

func TestPlanner_PlanPeriod(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	instr, err := p.Plan(Requirement{
		Category:    CategoryPeriod,
		Description: "上月的订单明细",
		Table:       "orders",
	}, orderFields)
	require.NoError(t, err)

	assert.Equal(t, QuerySelect, instr.QueryType)
	assert.Equal(t, OutputArray, instr.OutputFormat)
	require.NotNil(t, instr.TimeConfig)
	assert.Equal(t, "created_at", instr.TimeConfig.Field)
	assert.Equal(t, "last_month", instr.TimeConfig.Period)
	assert.Equal(t, []string{"id", "order_amount", "region", "created_at"}, instr.Fields)
}

func TestPlanner_PlanPeriodNeedsDateField(t *testing.T) {
	p := NewPlanner(nil)

	_, err := p.Plan(Requirement{
		Category:    CategoryPeriod,
		Description: "last month",
		Table:       "plain",
	}, []adapter.Column{{Name: "id"}})
	assert.ErrorContains(t, err, "date field")
}

func TestPlanner_PlanRegion(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	instr, err := p.Plan(Requirement{
		Category:    CategoryRegion,
		Description: "订单分布 地区：华东",
		Table:       "orders",
	}, orderFields)
	require.NoError(t, err)

	assert.Equal(t, QueryAggregate, instr.QueryType)
	require.Len(t, instr.Aggregations, 1)
	assert.Equal(t, []string{"region"}, instr.Aggregations[0].GroupBy)
	require.NotNil(t, instr.RegionConfig)
	assert.Equal(t, "region", instr.RegionConfig.Field)
	assert.Equal(t, "华东", instr.RegionConfig.Value)
	assert.Equal(t, MatchContains, instr.RegionConfig.MatchMode)
}

func TestPlanner_Errors(t *testing.T) {
	p := NewPlanner(nil)

	_, err := p.Plan(Requirement{Category: CategoryStatistical, Description: "x"}, nil)
	assert.ErrorContains(t, err, "no table")

	_, err = p.Plan(Requirement{Category: "mystery", Description: "x", Table: "t"}, nil)
	assert.ErrorContains(t, err, "unknown placeholder category")
}

func TestInferPeriod(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"上月报表", "last_month"},
		{"today's numbers", "today"},
		{"last 7 days activity", "last_7_days"},
		{"最近30天", "last_30_days"},
		{"unqualified", "this_month"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferPeriod(tt.description), tt.description)
	}
}
