package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/etl"
	"github.com/kongusen/AutoReportAI-sub000/internal/semantic"
	"github.com/kongusen/AutoReportAI-sub000/internal/testutil"
)

// routeStub is an in-memory adapter serving canned data for pipeline tests.
type routeStub struct {
	data    *adapter.ResultSet
	meta    map[string]*adapter.TableMetadata
	lastSQL string
}

func (s *routeStub) Connect(context.Context, adapter.Config) error { return nil }
func (s *routeStub) Close() error                                  { return nil }
func (s *routeStub) SourceType() string                            { return "routestub" }
func (s *routeStub) ListTables(context.Context) ([]string, error)  { return nil, nil }

func (s *routeStub) DescribeTable(_ context.Context, table string) (*adapter.TableMetadata, error) {
	meta, ok := s.meta[table]
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return meta, nil
}

func (s *routeStub) Execute(_ context.Context, query string, _ int) (*adapter.ResultSet, error) {
	s.lastSQL = query
	return s.data, nil
}

var routeStubSeq atomic.Int32

// registerRouteStub registers stub under a unique adapter type and returns a
// source wired to it.
func registerRouteStub(id string, stub *routeStub) catalog.Source {
	typeName := fmt.Sprintf("routestub-%d", routeStubSeq.Add(1))
	adapter.Register(typeName, func(*slog.Logger) adapter.Adapter { return stub })
	return catalog.Source{ID: id, Name: id, Conn: adapter.Config{Type: typeName}}
}

func ordersSchema() *catalog.TableSchema {
	return &catalog.TableSchema{
		SourceID:     "db1",
		Name:         "orders",
		BusinessTags: []string{"order"},
		Columns: []adapter.Column{
			{Name: "id", Type: "INTEGER", Position: 1},
			{Name: "order_amount", Type: "DECIMAL", Position: 2},
			{Name: "created_at", Type: "TIMESTAMP", Position: 3},
		},
		RowCount:     1000,
		LastAnalyzed: time.Now(),
	}
}

func newTestRouter(t *testing.T, stub *routeStub) *Router {
	t.Helper()
	reg := catalog.NewRegistry(testutil.NewTestLogger(t))
	reg.AddSource(registerRouteStub("db1", stub))
	reg.SetTables("db1", []*catalog.TableSchema{ordersSchema()})
	return New(reg, semantic.DefaultVocabulary(), testutil.NewTestLogger(t))
}

func TestRoute_Aggregation(t *testing.T) {
	stub := &routeStub{
		data: &adapter.ResultSet{
			Columns: []string{"total_count"},
			Rows:    [][]any{{int64(42)}},
		},
	}
	rt := newTestRouter(t, stub)

	res, err := rt.Route(context.Background(), "统计订单总数", "db1", Options{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.RowCount)
	assert.Contains(t, stub.lastSQL, "COUNT(*)")
	assert.Contains(t, stub.lastSQL, "orders")

	assert.Equal(t, string(semantic.IntentAggregation), res.Stats["intent"])
	assert.NotContains(t, res.Stats, "fallback_plan")
}

func TestRoute_FallbackPlan(t *testing.T) {
	stub := &routeStub{
		data: &adapter.ResultSet{
			Columns: []string{"total_count"},
			Rows:    [][]any{{int64(0)}},
		},
	}
	rt := newTestRouter(t, stub)

	// Nothing in the catalog relates to inventory; the pipeline degrades to
	// the fallback plan instead of failing.
	res, err := rt.Route(context.Background(), "xyzzy nothing relevant", "db1", Options{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, true, res.Stats["fallback_plan"])
	assert.Contains(t, stub.lastSQL, "data_table")
}

func TestRoute_UnknownSource(t *testing.T) {
	rt := newTestRouter(t, &routeStub{})
	_, err := rt.Route(context.Background(), "订单总数", "missing", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRoute_ExpiredDeadline(t *testing.T) {
	stub := &routeStub{data: &adapter.ResultSet{}}
	rt := newTestRouter(t, stub)

	res, err := rt.Route(context.Background(), "统计订单总数", "db1", Options{
		Deadline: time.Now().Add(-time.Second),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestPlanETL(t *testing.T) {
	stub := &routeStub{
		meta: map[string]*adapter.TableMetadata{
			"orders": {
				Name:    "orders",
				Columns: ordersSchema().Columns,
			},
		},
	}
	rt := newTestRouter(t, stub)

	instr, err := rt.PlanETL(context.Background(), etl.Requirement{
		Category:    etl.CategoryStatistical,
		Description: "订单总额",
		Table:       "orders",
	}, "db1")
	require.NoError(t, err)

	assert.Equal(t, etl.QueryAggregate, instr.QueryType)
	require.Len(t, instr.Aggregations, 1)
	assert.Equal(t, "sum", instr.Aggregations[0].Function)
	assert.Equal(t, "order_amount", instr.Aggregations[0].Field)
}

func TestPlanETL_UnknownTable(t *testing.T) {
	stub := &routeStub{meta: map[string]*adapter.TableMetadata{}}
	rt := newTestRouter(t, stub)

	_, err := rt.PlanETL(context.Background(), etl.Requirement{
		Category: etl.CategoryStatistical,
		Table:    "phantom",
	}, "db1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phantom")
}

func TestExecuteETL(t *testing.T) {
	stub := &routeStub{
		data: &adapter.ResultSet{
			Columns: []string{"sum_order_amount"},
			Rows:    [][]any{{123.45}},
		},
		meta: map[string]*adapter.TableMetadata{
			"orders": {Name: "orders", Columns: ordersSchema().Columns},
		},
	}
	rt := newTestRouter(t, stub)

	instr := &etl.Instructions{
		ID:        "test",
		QueryType: etl.QueryAggregate,
		Table:     "orders",
		Aggregations: []etl.Aggregation{
			{Function: "sum", Field: "order_amount"},
		},
		OutputFormat: etl.OutputScalar,
	}

	pd, err := rt.ExecuteETL(context.Background(), instr, "db1", Options{})
	require.NoError(t, err)

	assert.Equal(t, 123.45, pd.Value)
	assert.Equal(t, 1.0, pd.Confidence)
	assert.Equal(t, "db1", pd.Metadata["source_id"])
	assert.Contains(t, pd.Query, "SUM(order_amount)")
}
