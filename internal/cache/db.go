package cache

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// openWriter opens (or creates) the SQLite database at path and enforces a
// single writer connection under WAL.
func openWriter(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536", // 64 MB
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return db, nil
}

// openReadPool opens a dedicated read-only connection pool to the same
// database, so quick/full lookups during hashing never contend with the
// single writer connection.
func openReadPool(path string, maxConns int) (*sql.DB, error) {
	rdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite read pool %q: %w", path, err)
	}
	rdb.SetMaxOpenConns(maxConns)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA query_only = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
	}
	for _, p := range pragmas {
		if _, err := rdb.Exec(p); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return rdb, nil
}

// runMigrations applies all pending goose migrations from the embedded FS.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
