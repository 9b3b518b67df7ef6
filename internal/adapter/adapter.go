// Package adapter provides the source capability interface and adapter
// implementations for the query routing engine.
//
// Every registered data source (DuckDB file, Postgres server, SQLite file)
// is driven through the same small contract: connect, list tables, describe a
// table, execute a query. The router and executor depend only on this
// interface, never on a concrete source type.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
)

// Config holds the connection settings for a data source.
type Config struct {
	// Type specifies the source type (e.g., "duckdb", "postgres", "sqlite")
	Type string

	// Path is the file path for file-based sources (e.g., DuckDB, SQLite)
	// Use ":memory:" for an in-memory database
	Path string

	// Host is the hostname for network-based sources
	Host string

	// Port is the port number for network-based sources
	Port int

	// Database is the database name
	Database string

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Schema is the default schema to use
	Schema string

	// Options contains additional driver-specific options
	Options map[string]string
}

// Column describes one column of a source table.
type Column struct {
	// Name is the column name
	Name string

	// Type is the data type of the column
	Type string

	// Nullable indicates whether the column allows NULL values
	Nullable bool

	// Position is the ordinal position of the column in the table
	Position int
}

// TableMetadata holds introspected metadata about a source table.
type TableMetadata struct {
	// Schema is the schema containing the table
	Schema string

	// Name is the table name
	Name string

	// Columns contains metadata for each column
	Columns []Column

	// RowCount is the approximate number of rows (may not be exact)
	RowCount int64
}

// ResultSet is a fully materialized query result. Execution results are
// merged and reshaped after the fact, so rows are read eagerly rather than
// streamed through *sql.Rows.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// RowCount returns the number of rows in the result set.
func (r *ResultSet) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// RowMap returns row i as a column-name keyed map.
func (r *ResultSet) RowMap(i int) map[string]any {
	row := make(map[string]any, len(r.Columns))
	for j, col := range r.Columns {
		if j < len(r.Rows[i]) {
			row[col] = r.Rows[i][j]
		}
	}
	return row
}

// Adapter defines the interface that all source adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the source using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// ListTables returns the names of all tables visible in the source.
	ListTables(ctx context.Context) ([]string, error)

	// DescribeTable retrieves column metadata and a row-count estimate
	// for the named table.
	DescribeTable(ctx context.Context, table string) (*TableMetadata, error)

	// Execute runs a query and materializes its result. A limit > 0 appends
	// a LIMIT clause when the query does not already carry one.
	Execute(ctx context.Context, query string, limit int) (*ResultSet, error)

	// SourceType returns the adapter's source type name (e.g., "duckdb").
	SourceType() string
}

// CollectRows drains rows into a ResultSet. The rows are closed on return.
func CollectRows(rows *sql.Rows) (*ResultSet, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		for i, v := range values {
			// Convert []byte to string for readability
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}
	return rs, nil
}
