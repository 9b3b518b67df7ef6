package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/semantic"
	"github.com/kongusen/AutoReportAI-sub000/internal/testutil"
)

func newTestRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	reg := catalog.NewRegistry(testutil.NewTestLogger(t))
	reg.AddSource(catalog.Source{ID: "db1", Name: "primary", Conn: adapter.Config{Type: "sqlite", Path: ":memory:"}})
	reg.SetTables("db1", []*catalog.TableSchema{
		{
			SourceID: "db1",
			Name:     "orders",
			Columns: []adapter.Column{
				{Name: "id", Type: "INTEGER"},
				{Name: "user_id", Type: "INTEGER"},
				{Name: "order_amount", Type: "DECIMAL"},
				{Name: "created_at", Type: "TIMESTAMP"},
			},
			BusinessTags: []string{"order"},
			RowCount:     5000,
			LastAnalyzed: time.Now().Add(-24 * time.Hour),
			Relations: []catalog.Relation{
				{LeftTable: "orders", LeftColumn: "user_id", RightTable: "users", RightColumn: "id"},
			},
		},
		{
			SourceID: "db1",
			Name:     "users",
			Columns: []adapter.Column{
				{Name: "id", Type: "INTEGER"},
				{Name: "name", Type: "TEXT"},
				{Name: "level", Type: "TEXT"},
			},
			BusinessTags: []string{"user", "customer"},
			RowCount:     200,
		},
		{
			SourceID: "db1",
			Name:     "audit_log",
			Columns: []adapter.Column{
				{Name: "id", Type: "INTEGER"},
				{Name: "event", Type: "TEXT"},
			},
		},
	})
	return reg
}

func TestMatcher_Match(t *testing.T) {
	reg := newTestRegistry(t)
	m := NewMatcher(reg, semantic.DefaultVocabulary(), testutil.NewTestLogger(t))
	a := semantic.NewAnalyzer(semantic.DefaultVocabulary())

	qc := a.Analyze("上月VIP用户的订单总数")
	candidates, err := m.Match(context.Background(), &qc, "db1", Options{})
	require.NoError(t, err)
	require.Len(t, candidates, 2, "audit_log must fall below the threshold")

	// orders: name match (0.4) + tag match (0.3) + column match (0.2) +
	// row-count and freshness bonuses, capped at 1.0.
	assert.Equal(t, "orders", candidates[0].Table.Name)
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-9)
	assert.Contains(t, candidates[0].MatchingColumns, "user_id")
	assert.Contains(t, candidates[0].MatchingColumns, "created_at", "time range selects the date column")
	assert.Contains(t, candidates[0].MatchingColumns, "order_amount", "aggregation selects measure columns")
	assert.Equal(t, []string{"orders.user_id = users.id"}, candidates[0].RequiredJoins)

	// users also caps at 1.0; the tie breaks on table name.
	assert.Equal(t, "users", candidates[1].Table.Name)
	assert.InDelta(t, 1.0, candidates[1].Score, 1e-9)
}

func TestMatcher_ScoreThreshold(t *testing.T) {
	reg := newTestRegistry(t)
	m := NewMatcher(reg, semantic.DefaultVocabulary(), testutil.NewTestLogger(t))
	a := semantic.NewAnalyzer(semantic.DefaultVocabulary())

	// No vocabulary entity mentions audit logs; nothing should match.
	qc := a.Analyze("audit events")
	candidates, err := m.Match(context.Background(), &qc, "db1", Options{})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestMatcher_TableRestriction(t *testing.T) {
	reg := newTestRegistry(t)
	m := NewMatcher(reg, semantic.DefaultVocabulary(), testutil.NewTestLogger(t))
	a := semantic.NewAnalyzer(semantic.DefaultVocabulary())

	qc := a.Analyze("用户订单")
	candidates, err := m.Match(context.Background(), &qc, "db1", Options{Tables: []string{"users"}})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "users", candidates[0].Table.Name)
}

func TestMatcher_MaxResults(t *testing.T) {
	reg := newTestRegistry(t)
	m := NewMatcher(reg, semantic.DefaultVocabulary(), testutil.NewTestLogger(t))
	a := semantic.NewAnalyzer(semantic.DefaultVocabulary())

	qc := a.Analyze("用户订单")
	candidates, err := m.Match(context.Background(), &qc, "db1", Options{MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestMatcher_DeterministicOrder(t *testing.T) {
	reg := catalog.NewRegistry(nil)
	reg.AddSource(catalog.Source{ID: "db1", Conn: adapter.Config{Type: "sqlite"}})
	// Two tables with identical scores must sort by name.
	reg.SetTables("db1", []*catalog.TableSchema{
		{SourceID: "db1", Name: "user_b", BusinessTags: []string{"user"}, RowCount: 10},
		{SourceID: "db1", Name: "user_a", BusinessTags: []string{"user"}, RowCount: 10},
	})
	m := NewMatcher(reg, semantic.DefaultVocabulary(), nil)
	a := semantic.NewAnalyzer(semantic.DefaultVocabulary())

	qc := a.Analyze("用户")
	for i := 0; i < 20; i++ {
		candidates, err := m.Match(context.Background(), &qc, "db1", Options{})
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, "user_a", candidates[0].Table.Name)
		assert.Equal(t, "user_b", candidates[1].Table.Name)
	}
}
