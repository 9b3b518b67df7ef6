package semantic

import "regexp"

// IntentRule maps trigger keywords to an intent with a confidence.
// Rules are evaluated in order; the first match wins.
type IntentRule struct {
	Intent     Intent
	Keywords   []string
	Confidence float64
}

// TimePattern recognizes a time expression in the input text. Template is a
// SQL condition with a {column} placeholder for the owning table's date
// column; when Pattern captures a group, the capture is substituted for {n}.
type TimePattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// FilterRule maps a trigger keyword to a filter key/value pair.
type FilterRule struct {
	Keyword string
	Key     string
	Value   string
}

// AggregationRule maps trigger keywords to an aggregation function.
// Rules are evaluated in order; the first match wins.
type AggregationRule struct {
	Function string
	Keywords []string
}

// Vocabulary holds the keyword tables driving semantic analysis. It is
// injected into the analyzer rather than kept as package state so tests and
// deployments can run with alternate vocabularies.
type Vocabulary struct {
	// Entities maps an entity label to its trigger keywords
	Entities map[string][]string

	// IntentRules are evaluated in order
	IntentRules []IntentRule

	// TimePatterns are evaluated in order
	TimePatterns []TimePattern

	// FilterRules are evaluated in order
	FilterRules []FilterRule

	// AggregationRules are evaluated in order
	AggregationRules []AggregationRule
}

// DefaultVocabulary returns the built-in bilingual (Chinese/English)
// business vocabulary of the report platform.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Entities: map[string][]string{
			"User":    {"用户", "客户", "会员", "user", "customer", "member"},
			"Order":   {"订单", "order", "purchase"},
			"Product": {"商品", "产品", "product", "item", "sku"},
			"Payment": {"支付", "交易", "付款", "payment", "transaction"},
			"Region":  {"地区", "区域", "城市", "province", "region", "city"},
			"Revenue": {"收入", "营收", "销售额", "revenue", "sales"},
		},
		IntentRules: []IntentRule{
			{Intent: IntentAggregation, Keywords: []string{"总数", "总和", "总计", "总额", "合计", "sum of", "total"}, Confidence: 0.85},
			{Intent: IntentTrend, Keywords: []string{"趋势", "走势", "变化", "trend", "over time"}, Confidence: 0.8},
			{Intent: IntentComparison, Keywords: []string{"对比", "比较", "相比", "compare", "versus", " vs "}, Confidence: 0.8},
			{Intent: IntentStatistical, Keywords: []string{"统计", "数量", "多少", "平均", "statistics", "how many", "average"}, Confidence: 0.8},
			{Intent: IntentJoin, Keywords: []string{"关联", "结合", "join", "combined with"}, Confidence: 0.7},
		},
		TimePatterns: []TimePattern{
			{
				Pattern:  regexp.MustCompile(`最近(\d+)天|last (\d+) days?`),
				Template: "{column} >= CURRENT_DATE - INTERVAL '{n}' DAY",
			},
			{
				Pattern:  regexp.MustCompile(`上月|上个月|last month`),
				Template: "{column} >= DATE_TRUNC('month', CURRENT_DATE - INTERVAL '1' MONTH) AND {column} < DATE_TRUNC('month', CURRENT_DATE)",
			},
			{
				Pattern:  regexp.MustCompile(`本月|这个月|this month`),
				Template: "{column} >= DATE_TRUNC('month', CURRENT_DATE)",
			},
			{
				Pattern:  regexp.MustCompile(`今年|本年|this year`),
				Template: "{column} >= DATE_TRUNC('year', CURRENT_DATE)",
			},
			{
				Pattern:  regexp.MustCompile(`昨天|yesterday`),
				Template: "{column} >= CURRENT_DATE - INTERVAL '1' DAY AND {column} < CURRENT_DATE",
			},
			{
				Pattern:  regexp.MustCompile(`今天|today`),
				Template: "{column} >= CURRENT_DATE",
			},
		},
		FilterRules: []FilterRule{
			{Keyword: "vip", Key: "level", Value: "VIP"},
			{Keyword: "高级会员", Key: "level", Value: "VIP"},
			{Keyword: "活跃", Key: "status", Value: "active"},
			{Keyword: "active", Key: "status", Value: "active"},
			{Keyword: "已完成", Key: "status", Value: "completed"},
			{Keyword: "completed", Key: "status", Value: "completed"},
			{Keyword: "待支付", Key: "status", Value: "pending"},
			{Keyword: "pending", Key: "status", Value: "pending"},
		},
		AggregationRules: []AggregationRule{
			{Function: "count", Keywords: []string{"总数", "数量", "多少", "count", "how many"}},
			{Function: "sum", Keywords: []string{"总和", "总计", "总额", "合计", "sum", "total amount"}},
			{Function: "avg", Keywords: []string{"平均", "均值", "average", "avg", "mean"}},
			{Function: "max", Keywords: []string{"最大", "最高", "max", "highest", "largest"}},
			{Function: "min", Keywords: []string{"最小", "最低", "min", "lowest", "smallest"}},
		},
	}
}
