package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzer_Analyze(t *testing.T) {
	a := NewAnalyzer(DefaultVocabulary())

	tests := []struct {
		name        string
		text        string
		entities    []string
		intent      Intent
		confidence  float64
		aggregation string
		filters     map[string]string
		timeRange   string
	}{
		{
			name:        "vip order total last month",
			text:        "上月VIP用户的订单总数",
			entities:    []string{"Order", "User"},
			intent:      IntentAggregation,
			confidence:  0.85,
			aggregation: "count",
			filters:     map[string]string{"level": "VIP"},
			timeRange:   "{column} >= DATE_TRUNC('month', CURRENT_DATE - INTERVAL '1' MONTH) AND {column} < DATE_TRUNC('month', CURRENT_DATE)",
		},
		{
			name:        "english revenue trend",
			text:        "revenue trend over the last 30 days",
			entities:    []string{"Revenue"},
			intent:      IntentTrend,
			confidence:  0.8,
			aggregation: "",
			filters:     map[string]string{},
			timeRange:   "{column} >= CURRENT_DATE - INTERVAL '30' DAY",
		},
		{
			name:        "average payment",
			text:        "average payment amount for active customers",
			entities:    []string{"Payment", "User"},
			intent:      IntentStatistical,
			confidence:  0.8,
			aggregation: "avg",
			filters:     map[string]string{"status": "active"},
		},
		{
			name:       "plain detail request",
			text:       "show me the product catalog",
			entities:   []string{"Product"},
			intent:     IntentDetail,
			confidence: DefaultConfidence,
			filters:    map[string]string{},
		},
		{
			name:       "no entities at all",
			text:       "give me everything",
			entities:   nil,
			intent:     IntentDetail,
			confidence: DefaultConfidence,
			filters:    map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qc := a.Analyze(tt.text)

			assert.Equal(t, tt.text, qc.Text)
			assert.Equal(t, tt.entities, qc.Entities)
			assert.Equal(t, tt.intent, qc.Intent)
			assert.InDelta(t, tt.confidence, qc.Confidence, 1e-9)
			assert.Equal(t, tt.aggregation, qc.Aggregation)
			if tt.filters != nil {
				assert.Equal(t, tt.filters, qc.Filters)
			}
			if tt.timeRange != "" {
				assert.Equal(t, tt.timeRange, qc.TimeRange)
			}
		})
	}
}

func TestAnalyzer_Deterministic(t *testing.T) {
	a := NewAnalyzer(DefaultVocabulary())

	// Entity extraction iterates a map; repeated runs must still produce
	// identical, sorted output.
	first := a.Analyze("用户和订单的支付统计")
	require.NotEmpty(t, first.Entities)
	for i := 0; i < 50; i++ {
		got := a.Analyze("用户和订单的支付统计")
		require.Equal(t, first, got, "run %d diverged", i)
	}
	assert.IsIncreasing(t, first.Entities)
}

func TestAnalyzer_IntentPriority(t *testing.T) {
	a := NewAnalyzer(DefaultVocabulary())

	// "总数" matches both the aggregation intent rule and the statistical
	// keywords; the earlier rule must win.
	qc := a.Analyze("订单总数统计")
	assert.Equal(t, IntentAggregation, qc.Intent)

	// First aggregation rule wins too: 总数 -> count, not sum.
	assert.Equal(t, "count", qc.Aggregation)
}

func TestAnalyzer_FilterDoesNotOverwrite(t *testing.T) {
	a := NewAnalyzer(DefaultVocabulary())

	// Both "active" and "completed" map to the status key; the earlier
	// rule keeps it.
	qc := a.Analyze("active but completed orders")
	assert.Equal(t, map[string]string{"status": "active"}, qc.Filters)
}

func TestQueryContext_HasEntity(t *testing.T) {
	qc := QueryContext{Entities: []string{"Order", "User"}}
	assert.True(t, qc.HasEntity("User"))
	assert.False(t, qc.HasEntity("Region"))
}
