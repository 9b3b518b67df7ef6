// Package catalog holds the source registry and table metadata consumed by
// the matcher, planner, and executor. Metadata can be pre-populated from a
// persisted catalog cache or refreshed from live source introspection.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

// Relation declares a join relationship between two tables of one source.
type Relation struct {
	LeftTable   string
	LeftColumn  string
	RightTable  string
	RightColumn string
}

// TableSchema describes one table of a registered source.
type TableSchema struct {
	// SourceID identifies the owning source
	SourceID string

	// Name is the table name
	Name string

	// Columns contains column metadata (may be empty for names-only entries)
	Columns []adapter.Column

	// BusinessTags are curated labels used by relevance scoring
	// (e.g., "user", "order", "transaction")
	BusinessTags []string

	// RowCount is an approximate row count used for cost heuristics
	RowCount int64

	// LastAnalyzed records when the table was last introspected
	LastAnalyzed time.Time

	// Relations are declared join relationships involving this table
	Relations []Relation
}

// HasColumn reports whether the table declares the named column.
func (t *TableSchema) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// dateColumnHints are substrings suggesting a column holds a date or time.
var dateColumnHints = []string{"date", "time", "created", "updated", "_at", "日期", "时间"}

// measureColumnHints are substrings suggesting a column holds a numeric measure.
var measureColumnHints = []string{"amount", "price", "total", "cost", "fee", "revenue", "金额", "价格", "总额"}

// DateColumn returns the first column whose name suggests a date or time,
// or empty when none is found.
func (t *TableSchema) DateColumn() string {
	for _, c := range t.Columns {
		lower := strings.ToLower(c.Name)
		for _, hint := range dateColumnHints {
			if strings.Contains(lower, hint) {
				return c.Name
			}
		}
	}
	return ""
}

// MeasureColumns returns the columns whose names suggest numeric measures
// (amount, price, total and the like), in declaration order.
func (t *TableSchema) MeasureColumns() []string {
	var out []string
	for _, c := range t.Columns {
		lower := strings.ToLower(c.Name)
		for _, hint := range measureColumnHints {
			if strings.Contains(lower, hint) {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}

// ColumnNames returns the table's column names in declaration order.
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Source is a registered data source.
type Source struct {
	// ID is the stable source identifier used in plans and tasks
	ID string

	// Name is the human-readable display name
	Name string

	// Conn holds the connection settings
	Conn adapter.Config
}

// Registry maps source ids to sources and their known table metadata.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	tables  map[string][]*TableSchema
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
// If logger is nil, a discard logger is used.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		sources: make(map[string]Source),
		tables:  make(map[string][]*TableSchema),
		logger:  logger,
	}
}

// AddSource registers a source, replacing any previous entry with the same id.
func (r *Registry) AddSource(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[src.ID] = src
}

// Source returns the source with the given id.
func (r *Registry) Source(id string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[id]
	return src, ok
}

// Sources returns all registered sources sorted by id.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetTables replaces the registered table metadata for a source.
func (r *Registry) SetTables(sourceID string, tables []*TableSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[sourceID] = tables
}

// AddTable appends table metadata for a source.
func (r *Registry) AddTable(t *TableSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.SourceID] = append(r.tables[t.SourceID], t)
}

// Tables returns the known table metadata for a source.
// An empty result means the catalog has no entries for that source; callers
// should fall back to live introspection.
func (r *Registry) Tables(sourceID string) []*TableSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[sourceID]
}

// Table returns the named table of a source, if registered.
func (r *Registry) Table(sourceID, name string) (*TableSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tables[sourceID] {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Open acquires a connected adapter for the source. The caller owns the
// adapter and must Close it when done; connections are never shared across
// concurrent tasks beyond the driver's own pooling.
func (r *Registry) Open(ctx context.Context, sourceID string) (adapter.Adapter, error) {
	src, ok := r.Source(sourceID)
	if !ok {
		return nil, fmt.Errorf("source %q not registered", sourceID)
	}

	ad, err := adapter.New(src.Conn, r.logger)
	if err != nil {
		return nil, err
	}
	if err := ad.Connect(ctx, src.Conn); err != nil {
		return nil, fmt.Errorf("failed to connect to source %q: %w", sourceID, err)
	}
	return ad, nil
}
