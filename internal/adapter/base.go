package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"database/sql"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Execute, and DescribeTable implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing source connection", slog.String("type", b.Cfg.Type))
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Execute runs a query and materializes its result. When limit > 0 and the
// query carries no LIMIT clause of its own, one is appended.
func (b *BaseSQLAdapter) Execute(ctx context.Context, query string, limit int) (*ResultSet, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("source connection not established")
	}

	query = ApplyLimit(query, limit)

	//nolint:rowserrcheck // rows.Err() is checked inside CollectRows
	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return CollectRows(rows)
}

// ApplyLimit appends a LIMIT clause to query unless it already has one
// or limit is not positive.
func ApplyLimit(query string, limit int) string {
	if limit <= 0 || HasLimit(query) {
		return query
	}
	return fmt.Sprintf("%s LIMIT %d", strings.TrimRight(query, "; \t\n"), limit)
}

// HasLimit reports whether the query already contains a LIMIT clause.
func HasLimit(query string) bool {
	return strings.Contains(strings.ToUpper(query), "LIMIT ")
}

// describeViaInformationSchema provides a shared DescribeTable implementation
// over information_schema.columns. Placeholder style differs per driver, so
// the rendered placeholders are passed in by the concrete adapter.
func (b *BaseSQLAdapter) describeViaInformationSchema(ctx context.Context, table string, p1, p2 string) (*TableMetadata, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("source connection not established")
	}

	schema, tableName := splitQualifiedName(table, b.defaultSchema())

	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, p1, p2)

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	meta := &TableMetadata{
		Schema:  schema,
		Name:    tableName,
		Columns: columns,
	}

	// Row count is a best-effort hint used only by the cost optimizer.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", table) //nolint:gosec // table names come from source metadata
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&meta.RowCount); err != nil {
		meta.RowCount = 0
	}

	return meta, nil
}

func (b *BaseSQLAdapter) defaultSchema() string {
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema
	}
	if b.Cfg.Type == "postgres" {
		return "public"
	}
	return "main"
}

// splitQualifiedName splits a table reference into schema and name, falling
// back to the given default schema when the reference is unqualified.
func splitQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}
