// Package semantic turns a free-text task description into a structured
// QueryContext: recognized entities, intent, time range, filters, and an
// aggregation hint. Analysis is a pure function over the input string, so
// identical text always yields an identical context.
package semantic

import (
	"sort"
	"strings"
)

// Intent is the inferred purpose of a query.
type Intent string

// Recognized intents.
const (
	IntentStatistical Intent = "statistical"
	IntentDetail      Intent = "detail"
	IntentTrend       Intent = "trend"
	IntentComparison  Intent = "comparison"
	IntentAggregation Intent = "aggregation"
	IntentJoin        Intent = "join"
)

// DefaultConfidence is the confidence assigned when no intent rule matches.
const DefaultConfidence = 0.5

// QueryContext is the structured representation of a data request.
// Immutable once produced by the analyzer.
type QueryContext struct {
	// Text is the original request text
	Text string

	// Entities are the recognized business entity labels, sorted
	Entities []string

	// Intent is the inferred query intent
	Intent Intent

	// Confidence is the intent rule's confidence (0-1)
	Confidence float64

	// TimeRange is a SQL condition template with a {column} placeholder,
	// empty when no time expression was recognized
	TimeRange string

	// Filters maps filter keys to values extracted from the text
	Filters map[string]string

	// Aggregation is the inferred aggregation function (sum/avg/max/min/count),
	// empty when none was recognized
	Aggregation string
}

// HasEntity reports whether the context recognized the given entity label.
func (c *QueryContext) HasEntity(label string) bool {
	for _, e := range c.Entities {
		if e == label {
			return true
		}
	}
	return false
}

// Analyzer extracts a QueryContext from free text using an injected
// vocabulary.
type Analyzer struct {
	vocab Vocabulary
}

// NewAnalyzer creates an analyzer over the given vocabulary.
func NewAnalyzer(vocab Vocabulary) *Analyzer {
	return &Analyzer{vocab: vocab}
}

// Analyze produces the QueryContext for the given text.
func (a *Analyzer) Analyze(text string) QueryContext {
	lower := strings.ToLower(text)

	intent, confidence := a.classifyIntent(lower)
	return QueryContext{
		Text:        text,
		Entities:    a.extractEntities(lower),
		Intent:      intent,
		Confidence:  confidence,
		TimeRange:   a.extractTimeRange(lower),
		Filters:     a.extractFilters(lower),
		Aggregation: a.inferAggregation(lower),
	}
}

// extractEntities returns the de-duplicated, sorted entity labels whose
// keywords appear in the text.
func (a *Analyzer) extractEntities(lower string) []string {
	var entities []string
	for label, keywords := range a.vocab.Entities {
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				entities = append(entities, label)
				break
			}
		}
	}
	sort.Strings(entities)
	return entities
}

// classifyIntent applies the ordered intent rules; the first matching rule
// wins. Defaults to detail intent with DefaultConfidence.
func (a *Analyzer) classifyIntent(lower string) (Intent, float64) {
	for _, rule := range a.vocab.IntentRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Intent, rule.Confidence
			}
		}
	}
	return IntentDetail, DefaultConfidence
}

// extractTimeRange applies the time pattern table in order and renders the
// first match's template. A captured group replaces the {n} placeholder.
func (a *Analyzer) extractTimeRange(lower string) string {
	for _, p := range a.vocab.TimePatterns {
		m := p.Pattern.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		expr := p.Template
		for _, group := range m[1:] {
			if group != "" {
				expr = strings.ReplaceAll(expr, "{n}", group)
				break
			}
		}
		return expr
	}
	return ""
}

// extractFilters applies the fixed keyword-to-filter rules. Later rules do
// not overwrite a key set by an earlier rule.
func (a *Analyzer) extractFilters(lower string) map[string]string {
	filters := make(map[string]string)
	for _, rule := range a.vocab.FilterRules {
		if !strings.Contains(lower, strings.ToLower(rule.Keyword)) {
			continue
		}
		if _, exists := filters[rule.Key]; !exists {
			filters[rule.Key] = rule.Value
		}
	}
	return filters
}

// inferAggregation applies the ordered aggregation keyword table; the first
// matching rule wins.
func (a *Analyzer) inferAggregation(lower string) string {
	for _, rule := range a.vocab.AggregationRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Function
			}
		}
	}
	return ""
}
