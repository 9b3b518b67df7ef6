// Package match scores registered tables and columns against a query
// context, producing ranked table candidates for the planner.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/semantic"
)

// Scoring weights and bounds. Scores are capped at 1.0; candidates below
// ScoreThreshold are dropped.
const (
	ScoreThreshold     = 0.3
	nameMatchWeight    = 0.4
	tagMatchWeight     = 0.3
	columnMatchWeight  = 0.2
	activityBonus      = 0.1
	fallbackNameScore  = 0.5
	fallbackGuessScore = 0.35
)

// DefaultMaxResults bounds the candidate list when the caller does not.
const DefaultMaxResults = 5

// Candidate is a table scored as potentially relevant to a query context.
// Created by the matcher; consumed, never mutated, by the planner.
type Candidate struct {
	// Table is the matched table's metadata
	Table *catalog.TableSchema

	// Score is the relevance score (0-1)
	Score float64

	// MatchingColumns are the columns selected by keyword matching, ordered
	MatchingColumns []string

	// BusinessContext is a short human-readable summary of why the table matched
	BusinessContext string

	// RequiredJoins are declared join expressions this table participates in
	RequiredJoins []string
}

// Options control a single match call.
type Options struct {
	// Tables restricts matching to an explicit table list (empty = all)
	Tables []string

	// MaxResults bounds the candidate list (0 = DefaultMaxResults)
	MaxResults int

	// NamesOnly skips column introspection on the live fallback path
	NamesOnly bool
}

// Matcher ranks tables of one source against a query context.
type Matcher struct {
	registry     *catalog.Registry
	introspector *catalog.Introspector
	vocab        semantic.Vocabulary
	logger       *slog.Logger
}

// NewMatcher creates a matcher over the given registry and vocabulary.
// If logger is nil, a discard logger is used.
func NewMatcher(registry *catalog.Registry, vocab semantic.Vocabulary, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Matcher{
		registry:     registry,
		introspector: catalog.NewIntrospector(logger),
		vocab:        vocab,
		logger:       logger,
	}
}

// Match returns ranked candidates for the source, best first. When the
// catalog has no registered tables for the source, the matcher introspects
// the source directly and scores its tables with a keyword-only heuristic,
// so stale or absent metadata degrades to a best guess instead of failing.
func (m *Matcher) Match(ctx context.Context, qc *semantic.QueryContext, sourceID string, opts Options) ([]*Candidate, error) {
	tables := m.registry.Tables(sourceID)

	fallback := false
	if len(tables) == 0 {
		discovered, err := m.discoverLive(ctx, sourceID, opts.NamesOnly)
		if err != nil {
			return nil, err
		}
		tables = discovered
		fallback = true
		m.logger.Info("catalog empty, matched against live introspection",
			slog.String("source", sourceID), slog.Int("tables", len(tables)))
	}

	keywords := m.entityKeywords(qc)

	var candidates []*Candidate
	for _, t := range tables {
		if len(opts.Tables) > 0 && !containsString(opts.Tables, t.Name) {
			continue
		}

		var c *Candidate
		if fallback {
			c = m.scoreFallback(t, qc, keywords)
		} else {
			c = m.score(t, qc, keywords)
		}
		if c != nil && c.Score > ScoreThreshold {
			candidates = append(candidates, c)
		}
	}

	// Stable order: score descending, then name for determinism.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Table.Name < candidates[j].Table.Name
	})

	max := opts.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates, nil
}

// score computes the catalog-backed relevance score for one table.
func (m *Matcher) score(t *catalog.TableSchema, qc *semantic.QueryContext, keywords []string) *Candidate {
	var score float64
	var reasons []string

	lowerName := strings.ToLower(t.Name)
	for _, kw := range keywords {
		if strings.Contains(lowerName, kw) {
			score += nameMatchWeight
			reasons = append(reasons, fmt.Sprintf("name matches %q", kw))
		}
	}

	for _, tag := range t.BusinessTags {
		if containsString(keywords, strings.ToLower(tag)) {
			score += tagMatchWeight
			reasons = append(reasons, fmt.Sprintf("tagged %q", tag))
			break
		}
	}

	matching := m.matchColumns(t, qc, keywords)
	if columnMatchesKeyword(matching, keywords) {
		score += columnMatchWeight
	}

	if t.RowCount > 0 {
		score += activityBonus
	}
	if !t.LastAnalyzed.IsZero() && time.Since(t.LastAnalyzed) < 30*24*time.Hour {
		score += activityBonus
	}

	if score > 1.0 {
		score = 1.0
	}
	if score <= ScoreThreshold {
		return nil
	}

	return &Candidate{
		Table:           t,
		Score:           score,
		MatchingColumns: matching,
		BusinessContext: strings.Join(reasons, "; "),
		RequiredJoins:   declaredJoins(t),
	}
}

// scoreFallback computes the lower keyword-only score used when the table
// came from live introspection rather than the curated catalog.
func (m *Matcher) scoreFallback(t *catalog.TableSchema, qc *semantic.QueryContext, keywords []string) *Candidate {
	lowerName := strings.ToLower(t.Name)
	for _, kw := range keywords {
		if strings.Contains(lowerName, kw) {
			return &Candidate{
				Table:           t,
				Score:           fallbackNameScore,
				MatchingColumns: m.matchColumns(t, qc, keywords),
				BusinessContext: fmt.Sprintf("live table, name matches %q", kw),
			}
		}
	}

	// With no recognized entities at all, every discovered table is an
	// equally weak guess.
	if len(keywords) == 0 {
		return &Candidate{
			Table:           t,
			Score:           fallbackGuessScore,
			MatchingColumns: m.matchColumns(t, qc, keywords),
			BusinessContext: "live table, no entity keywords to match",
		}
	}
	return nil
}

// matchColumns selects the table columns relevant to the context: columns
// matching an entity keyword, the date column when a time range is present,
// and measure columns when an aggregation is hinted.
func (m *Matcher) matchColumns(t *catalog.TableSchema, qc *semantic.QueryContext, keywords []string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, c := range t.Columns {
		lower := strings.ToLower(c.Name)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				add(c.Name)
				break
			}
		}
	}

	if qc.TimeRange != "" {
		add(t.DateColumn())
	}
	if qc.Aggregation != "" {
		for _, col := range t.MeasureColumns() {
			add(col)
		}
	}
	return out
}

// entityKeywords flattens the context's entities into their lowercase
// vocabulary keywords, including the entity labels themselves.
func (m *Matcher) entityKeywords(qc *semantic.QueryContext) []string {
	var out []string
	for _, entity := range qc.Entities {
		out = append(out, strings.ToLower(entity))
		for _, kw := range m.vocab.Entities[entity] {
			out = append(out, strings.ToLower(kw))
		}
	}
	return out
}

// discoverLive introspects the source for its table list.
func (m *Matcher) discoverLive(ctx context.Context, sourceID string, namesOnly bool) ([]*catalog.TableSchema, error) {
	ad, err := m.registry.Open(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ad.Close() }()

	return m.introspector.Discover(ctx, ad, sourceID, namesOnly)
}

// declaredJoins renders a table's declared relations as join expressions.
func declaredJoins(t *catalog.TableSchema) []string {
	out := make([]string, 0, len(t.Relations))
	for _, rel := range t.Relations {
		out = append(out, fmt.Sprintf("%s.%s = %s.%s",
			rel.LeftTable, rel.LeftColumn, rel.RightTable, rel.RightColumn))
	}
	return out
}

// columnMatchesKeyword reports whether any matched column name contains an
// entity keyword.
func columnMatchesKeyword(columns, keywords []string) bool {
	for _, col := range columns {
		lower := strings.ToLower(col)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
