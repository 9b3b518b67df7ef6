package etl

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

// Category is the typed placeholder category an instruction set is planned
// from.
type Category string

// Placeholder categories.
const (
	CategoryStatistical Category = "statistical"
	CategoryChart       Category = "chart"
	CategoryPeriod      Category = "period"
	CategoryRegion      Category = "region"
)

// Requirement is a typed placeholder requirement: what kind of value a
// report placeholder needs, described in free text, against one table.
type Requirement struct {
	Category    Category
	Description string
	Table       string
}

// Planner converts a requirement plus the table's available fields into
// ETL instructions via category-specific rules.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner creates an instruction planner.
// If logger is nil, a discard logger is used.
func NewPlanner(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{logger: logger}
}

// Plan emits instructions for the requirement given the table's fields.
func (p *Planner) Plan(req Requirement, fields []adapter.Column) (*Instructions, error) {
	if req.Table == "" {
		return nil, fmt.Errorf("requirement has no table")
	}

	var (
		instr *Instructions
		err   error
	)
	switch req.Category {
	case CategoryStatistical:
		instr, err = p.planStatistical(req, fields)
	case CategoryChart:
		instr, err = p.planChart(req, fields)
	case CategoryPeriod:
		instr, err = p.planPeriod(req, fields)
	case CategoryRegion:
		instr, err = p.planRegion(req, fields)
	default:
		return nil, fmt.Errorf("unknown placeholder category %q", req.Category)
	}
	if err != nil {
		return nil, err
	}

	instr.ID = uuid.New().String()
	instr.Table = req.Table

	p.logger.Debug("planned etl instructions",
		slog.String("category", string(req.Category)),
		slog.String("query_type", string(instr.QueryType)))
	return instr, nil
}

// planStatistical emits an aggregate with the function inferred from the
// description keywords: total → sum, average → avg, count → count, and so on.
func (p *Planner) planStatistical(req Requirement, fields []adapter.Column) (*Instructions, error) {
	fn := inferFunction(req.Description)

	agg := Aggregation{Function: fn, Field: "*"}
	if fn != "count" {
		measure := findMeasureField(fields)
		if measure == "" {
			return nil, fmt.Errorf("no measure field available for %s aggregation", fn)
		}
		agg.Field = measure
	}

	return &Instructions{
		QueryType:    QueryAggregate,
		Aggregations: []Aggregation{agg},
		OutputFormat: OutputScalar,
	}, nil
}

// planChart emits an aggregate grouped by a detected time or region column.
func (p *Planner) planChart(req Requirement, fields []adapter.Column) (*Instructions, error) {
	groupBy := findDateField(fields)
	if groupBy == "" {
		groupBy = findRegionField(fields)
	}
	if groupBy == "" {
		return nil, fmt.Errorf("no time or region field to group chart data by")
	}

	fn := inferFunction(req.Description)
	agg := Aggregation{Function: fn, Field: "*", GroupBy: []string{groupBy}}
	if fn != "count" {
		if measure := findMeasureField(fields); measure != "" {
			agg.Field = measure
		} else {
			agg.Function = "count"
		}
	}

	return &Instructions{
		QueryType:    QuerySelectForChart,
		Fields:       []string{groupBy},
		Aggregations: []Aggregation{agg},
		OutputFormat: OutputDataframe,
	}, nil
}

// planPeriod emits a plain select restricted to a time window; it requires
// a detected date column.
func (p *Planner) planPeriod(req Requirement, fields []adapter.Column) (*Instructions, error) {
	dateField := findDateField(fields)
	if dateField == "" {
		return nil, fmt.Errorf("period requirement needs a date field, none detected")
	}

	return &Instructions{
		QueryType: QuerySelect,
		Fields:    fieldNames(fields),
		TimeConfig: &TimeFilterConfig{
			Field:  dateField,
			Period: inferPeriod(req.Description),
		},
		OutputFormat: OutputArray,
	}, nil
}

// planRegion emits an aggregate grouped by a detected region column with a
// region filter.
func (p *Planner) planRegion(req Requirement, fields []adapter.Column) (*Instructions, error) {
	regionField := findRegionField(fields)
	if regionField == "" {
		return nil, fmt.Errorf("region requirement needs a region field, none detected")
	}

	instr := &Instructions{
		QueryType: QueryAggregate,
		Fields:    []string{regionField},
		Aggregations: []Aggregation{
			{Function: "count", Field: "*", GroupBy: []string{regionField}},
		},
		OutputFormat: OutputDataframe,
	}

	if value := extractRegionValue(req.Description); value != "" {
		instr.RegionConfig = &RegionFilterConfig{
			Field:     regionField,
			Value:     value,
			MatchMode: MatchContains,
		}
	}
	return instr, nil
}

// inferFunction maps description keywords to an aggregation function,
// defaulting to count.
func inferFunction(description string) string {
	lower := strings.ToLower(description)
	switch {
	case containsAny(lower, "总和", "总额", "合计", "total", "sum"):
		return "sum"
	case containsAny(lower, "平均", "均值", "average", "avg", "mean"):
		return "avg"
	case containsAny(lower, "最大", "最高", "max", "highest"):
		return "max"
	case containsAny(lower, "最小", "最低", "min", "lowest"):
		return "min"
	default:
		return "count"
	}
}

// inferPeriod maps description keywords to a relative period, defaulting to
// this_month.
func inferPeriod(description string) string {
	lower := strings.ToLower(description)
	switch {
	case containsAny(lower, "上月", "上个月", "last month"):
		return "last_month"
	case containsAny(lower, "今年", "本年", "this year"):
		return "this_year"
	case containsAny(lower, "昨天", "yesterday"):
		return "yesterday"
	case containsAny(lower, "今天", "today"):
		return "today"
	case containsAny(lower, "最近7天", "近7天", "last 7 days"):
		return "last_7_days"
	case containsAny(lower, "最近30天", "近30天", "last 30 days"):
		return "last_30_days"
	default:
		return "this_month"
	}
}

// Field detection hints, matching the catalog's column heuristics.
var (
	dateFieldHints    = []string{"date", "time", "created", "updated", "_at", "日期", "时间"}
	measureFieldHints = []string{"amount", "price", "total", "cost", "fee", "revenue", "金额", "价格", "总额"}
	regionFieldHints  = []string{"region", "province", "city", "area", "district", "地区", "区域", "城市", "省"}
)

func findDateField(fields []adapter.Column) string {
	return findByHints(fields, dateFieldHints)
}

func findMeasureField(fields []adapter.Column) string {
	return findByHints(fields, measureFieldHints)
}

func findRegionField(fields []adapter.Column) string {
	return findByHints(fields, regionFieldHints)
}

func findByHints(fields []adapter.Column, hints []string) string {
	for _, f := range fields {
		lower := strings.ToLower(f.Name)
		for _, hint := range hints {
			if strings.Contains(lower, hint) {
				return f.Name
			}
		}
	}
	return ""
}

// extractRegionValue pulls a concrete region value out of the description
// when it is phrased as "region: X" or "地区：X".
func extractRegionValue(description string) string {
	for _, sep := range []string{"region:", "地区：", "地区:"} {
		if i := strings.Index(strings.ToLower(description), sep); i >= 0 {
			rest := strings.TrimSpace(description[i+len(sep):])
			if j := strings.IndexAny(rest, " ,;，；"); j >= 0 {
				rest = rest[:j]
			}
			return rest
		}
	}
	return ""
}

func fieldNames(fields []adapter.Column) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
