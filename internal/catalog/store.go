package catalog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver for the catalog cache

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
)

//go:embed schema.sql
var schemaSQL string

// Store persists discovered table metadata in a SQLite file so the matcher
// does not have to introspect live sources on every request.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new catalog cache store instance.
func NewStore() *Store {
	return &Store{}
}

// Open opens the catalog cache database.
// Use ":memory:" for an in-memory cache.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open catalog cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping catalog cache: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the catalog cache.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema initializes the cache schema.
func (s *Store) InitSchema() error {
	if s.db == nil {
		return fmt.Errorf("catalog cache not opened")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return nil
}

// SaveTables replaces the cached metadata for a source.
func (s *Store) SaveTables(sourceID string, tables []*TableSchema) error {
	if s.db == nil {
		return fmt.Errorf("catalog cache not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM catalog_tables WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to clear cached tables: %w", err)
	}

	for _, t := range tables {
		id := uuid.New().String()
		_, err := tx.Exec(`
			INSERT INTO catalog_tables (id, source_id, name, business_tags, row_count, last_analyzed)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, sourceID, t.Name, strings.Join(t.BusinessTags, ","),
			t.RowCount, t.LastAnalyzed.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to cache table %s: %w", t.Name, err)
		}

		for _, c := range t.Columns {
			nullable := 0
			if c.Nullable {
				nullable = 1
			}
			_, err := tx.Exec(`
				INSERT INTO catalog_columns (table_id, name, type, nullable, position)
				VALUES (?, ?, ?, ?, ?)`,
				id, c.Name, c.Type, nullable, c.Position)
			if err != nil {
				return fmt.Errorf("failed to cache column %s.%s: %w", t.Name, c.Name, err)
			}
		}

		for _, rel := range t.Relations {
			_, err := tx.Exec(`
				INSERT INTO catalog_relations (table_id, left_table, left_column, right_table, right_column)
				VALUES (?, ?, ?, ?, ?)`,
				id, rel.LeftTable, rel.LeftColumn, rel.RightTable, rel.RightColumn)
			if err != nil {
				return fmt.Errorf("failed to cache relation for %s: %w", t.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog transaction: %w", err)
	}
	return nil
}

// LoadTables returns the cached metadata for a source.
func (s *Store) LoadTables(sourceID string) ([]*TableSchema, error) {
	if s.db == nil {
		return nil, fmt.Errorf("catalog cache not opened")
	}

	rows, err := s.db.Query(`
		SELECT id, name, business_tags, row_count, last_analyzed
		FROM catalog_tables
		WHERE source_id = ?
		ORDER BY name`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type rec struct {
		id    string
		table *TableSchema
	}
	var recs []rec
	for rows.Next() {
		var (
			id       string
			t        TableSchema
			tags     string
			analyzed string
		)
		if err := rows.Scan(&id, &t.Name, &tags, &t.RowCount, &analyzed); err != nil {
			return nil, fmt.Errorf("failed to scan cached table: %w", err)
		}
		t.SourceID = sourceID
		if tags != "" {
			t.BusinessTags = strings.Split(tags, ",")
		}
		if ts, err := time.Parse(time.RFC3339, analyzed); err == nil {
			t.LastAnalyzed = ts
		}
		recs = append(recs, rec{id: id, table: &t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached tables: %w", err)
	}

	for _, r := range recs {
		if err := s.loadColumns(r.id, r.table); err != nil {
			return nil, err
		}
		if err := s.loadRelations(r.id, r.table); err != nil {
			return nil, err
		}
	}

	out := make([]*TableSchema, len(recs))
	for i, r := range recs {
		out[i] = r.table
	}
	return out, nil
}

// LoadInto loads the cached metadata of every registered source into reg.
func (s *Store) LoadInto(reg *Registry) error {
	for _, src := range reg.Sources() {
		tables, err := s.LoadTables(src.ID)
		if err != nil {
			return err
		}
		if len(tables) > 0 {
			reg.SetTables(src.ID, tables)
		}
	}
	return nil
}

func (s *Store) loadColumns(tableID string, t *TableSchema) error {
	rows, err := s.db.Query(`
		SELECT name, type, nullable, position
		FROM catalog_columns
		WHERE table_id = ?
		ORDER BY position`, tableID)
	if err != nil {
		return fmt.Errorf("failed to load cached columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			col      adapter.Column
			nullable int
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return fmt.Errorf("failed to scan cached column: %w", err)
		}
		col.Nullable = nullable == 1
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func (s *Store) loadRelations(tableID string, t *TableSchema) error {
	rows, err := s.db.Query(`
		SELECT left_table, left_column, right_table, right_column
		FROM catalog_relations
		WHERE table_id = ?`, tableID)
	if err != nil {
		return fmt.Errorf("failed to load cached relations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rel Relation
		if err := rows.Scan(&rel.LeftTable, &rel.LeftColumn, &rel.RightTable, &rel.RightColumn); err != nil {
			return fmt.Errorf("failed to scan cached relation: %w", err)
		}
		t.Relations = append(t.Relations, rel)
	}
	return rows.Err()
}
