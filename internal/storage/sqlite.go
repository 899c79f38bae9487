// Package storage implements the Storage Writer (spec §4.L): silver JSONL,
// gold CSV, and a relational SQLite tier. Connection setup is grounded on
// the teacher's internal/storage/sqlite/connection.go.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/listingcrawl/listingcrawl/internal/common"
)

// relationalColumns is the fixed column set shared by every entity-type
// table (spec §4.L). dedup_key is unique; source_id/title/venue_name/
// address/city are immutable once first written, per spec §4.L's upsert
// rule ("not source_id/title/venue_name/address/city").
var relationalColumns = []string{
	"dedup_key", "source_id", "title", "venue_name", "address", "city",
	"country", "timezone", "start_at", "end_at", "price_text", "price_value",
	"organizer", "url", "sport_type", "updated_at",
}

var immutableColumns = map[string]bool{
	"source_id": true, "title": true, "venue_name": true, "address": true, "city": true,
}

// DB opens (creating if necessary) the relational store at path and
// ensures every entity-type table exists.
type DB struct {
	conn *sql.DB
}

// OpenDB opens the SQLite database at path, matching the teacher's
// single-connection pool sizing to avoid SQLITE_BUSY under this
// single-process crawler's concurrent writers.
func OpenDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating database directory %s: %v", common.ErrFatal, dir, err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database %s: %v", common.ErrFatal, path, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: setting WAL mode: %v", common.ErrFatal, err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %v", common.ErrFatal, err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

func tableFor(entityType string) string {
	return entityType // "events", "festivals", "sports" are already valid table names
}

func (d *DB) initSchema() error {
	for _, t := range []string{"events", "festivals", "sports"} {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			dedup_key TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			title TEXT NOT NULL,
			venue_name TEXT,
			address TEXT,
			city TEXT,
			country TEXT,
			timezone TEXT,
			start_at TEXT,
			end_at TEXT,
			price_text TEXT,
			price_value REAL,
			organizer TEXT,
			url TEXT,
			sport_type TEXT,
			updated_at TEXT NOT NULL
		)`, tableFor(t))

		if _, err := d.conn.Exec(ddl); err != nil {
			return fmt.Errorf("%w: creating table %s: %v", common.ErrFatal, t, err)
		}
	}

	return nil
}
