package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// MemoryPath keeps the journal in process memory; it is lost on restart.
const MemoryPath = ":memory:"

// Open opens the SQLite journal at path and applies the schema.
// PRE: path is a file path or MemoryPath
// POST: Returns a ready connection pool; an in-memory database is pinned to one connection
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = MemoryPath
	}
	dsn := path
	if path != MemoryPath {
		// Pragmas in the DSN apply to every pooled connection, not just the one InitDB runs on.
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", path, err)
	}
	if path == MemoryPath {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitDB initializes the journal schema.
// PRE: db is a valid database connection
// POST: All tables exist, foreign keys enforced; idempotent
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS dispatch (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		operator TEXT NOT NULL,
		preview TEXT NOT NULL DEFAULT '',
		item_count INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		success_count INTEGER NOT NULL,
		failure_chunk_count INTEGER NOT NULL,
		send_at TEXT,
		expire_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dispatch_created_at ON dispatch(created_at);
	CREATE INDEX IF NOT EXISTS idx_dispatch_operator ON dispatch(operator, created_at);

	CREATE TABLE IF NOT EXISTS dispatch_chunk (
		dispatch_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		size INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		status_description TEXT,
		accepted INTEGER NOT NULL DEFAULT 0,
		transport_error TEXT,
		PRIMARY KEY (dispatch_id, idx),
		FOREIGN KEY (dispatch_id) REFERENCES dispatch(id) ON DELETE CASCADE
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
