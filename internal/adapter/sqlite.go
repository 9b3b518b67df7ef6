package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	Register("sqlite", func(logger *slog.Logger) Adapter { return NewSQLite(logger) })
}

// SQLiteAdapter implements the Adapter interface for SQLite files.
type SQLiteAdapter struct {
	BaseSQLAdapter
}

// NewSQLite creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func NewSQLite(logger *slog.Logger) *SQLiteAdapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteAdapter{BaseSQLAdapter: BaseSQLAdapter{Logger: logger}}
}

// SourceType returns the source type name.
func (a *SQLiteAdapter) SourceType() string {
	return "sqlite"
}

// Connect establishes a connection to a SQLite database file.
// Use ":memory:" as the path for an in-memory database.
func (a *SQLiteAdapter) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// ListTables returns the names of all user tables.
func (a *SQLiteAdapter) ListTables(ctx context.Context) ([]string, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("source connection not established")
	}

	rows, err := a.DB.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table names: %w", err)
	}
	return tables, nil
}

// DescribeTable retrieves column metadata via PRAGMA table_info.
// SQLite has no information_schema, so the shared path does not apply.
func (a *SQLiteAdapter) DescribeTable(ctx context.Context, table string) (*TableMetadata, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("source connection not established")
	}

	rows, err := a.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dfltVal sql.NullString
			primary int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltVal, &primary); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, Column{
			Name:     name,
			Type:     ctype,
			Nullable: notNull == 0,
			Position: cid + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	meta := &TableMetadata{Schema: "main", Name: table, Columns: columns}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %q", table) //nolint:gosec // table names come from source metadata
	if err := a.DB.QueryRowContext(ctx, countQuery).Scan(&meta.RowCount); err != nil {
		meta.RowCount = 0
	}

	return meta, nil
}
