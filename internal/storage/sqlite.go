package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
//
// The pool is pinned to a single connection: each store handle owns exactly
// one persistent connection for its lifetime, and an in-memory database would
// otherwise vanish between pooled connections.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}
