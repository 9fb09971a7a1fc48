// Package storage persists push subscriptions and delivery outcomes in
// SQLite.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// migration represents a single schema migration step.
type migration struct {
	version int
	sql     string
}

// migrations holds all schema migrations in order. Each migration is applied
// exactly once, tracked by the schema_migrations table.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE subscriptions (
    id         TEXT PRIMARY KEY,
    endpoint   TEXT NOT NULL,
    p256dh     TEXT NOT NULL DEFAULT '',
    auth       TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);

CREATE TABLE delivery_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    endpoint     TEXT NOT NULL,
    service_type TEXT NOT NULL,
    status_code  INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL,
    error_msg    TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL
);

CREATE INDEX idx_delivery_log_created_at ON delivery_log(created_at);
`,
	},
}

// NewSQLiteDB opens (or creates) the SQLite database at path and applies any
// pending migrations. It returns the handle and the number of migrations
// applied.
func NewSQLiteDB(path string) (*sql.DB, int, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening database %q: %w", path, err)
	}

	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("enabling foreign keys: %w", err)
	}

	applied, err := migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, 0, err
	}
	return db, applied, nil
}

// migrate applies pending migrations and returns how many ran.
func migrate(db *sql.DB) (int, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return 0, fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		if current.Valid && m.version <= int(current.Int64) {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return applied, fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("applying migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("committing migration %d: %w", m.version, err)
		}
		applied++
	}
	return applied, nil
}
