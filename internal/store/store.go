// Package store owns the SQLite handle used by the execution service.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/schema"
)

const (
	// DriverMattn is the cgo driver registered by github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"
	// DriverModernc is the pure-Go driver registered by modernc.org/sqlite.
	DriverModernc = "sqlite"

	// MemoryName selects a transient in-memory database.
	MemoryName = ":memory:"
)

// Store is a single-connection SQLite database.
type Store struct {
	db   *sql.DB
	name string
}

// Open opens the database identified by name using the given driver.
//
// An empty name or ":memory:" opens a transient database that disappears
// when the store is closed; any other name is a file path.
//
// File-backed databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(driver, name string) (*Store, error) {
	if driver == "" {
		driver = DriverMattn
	}
	if name == "" {
		name = MemoryName
	}

	db, err := sql.Open(driver, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// only lives as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db, name); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db, name: name}, nil
}

// OpenDB wraps an already opened database.
func OpenDB(db *sql.DB, name string) *Store {
	return &Store{db: db, name: name}
}

// Name returns the storage identifier the store was opened with.
func (s *Store) Name() string {
	return s.name
}

// Transient reports whether the store lives only in memory.
func (s *Store) Transient() bool {
	return s.name == MemoryName
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Provision runs the schema's DDL and seed statements in one transaction.
// Provisioning is idempotent.
func (s *Store) Provision(ctx context.Context, sc *schema.Schema) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provision: %w", err)
	}

	for _, stmt := range sc.Statements() {
		if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("provision %q: %w", stmt.SQL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provision: %w", err)
	}
	return nil
}

// Query runs one statement and returns its result rows keyed by column name.
//
// Statements that produce no rows (DDL, or DML without RETURNING) yield an
// empty, non-nil slice.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]protocol.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := []protocol.Row{}
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

func scanRow(rows *sql.Rows, cols []string) (protocol.Row, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	row := make(protocol.Row, len(cols))
	for i, c := range cols {
		row[c] = normalize(values[i])
	}
	return row, nil
}

// normalize maps driver values onto the scalar set carried by the protocol.
// TEXT may arrive as []byte depending on the driver; timestamps become RFC 3339.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

func applyPragmas(db *sql.DB, name string) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if name != MemoryName {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
