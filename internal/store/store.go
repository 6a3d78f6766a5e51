// Package store persists sites, child records, documents, and the crawl
// ledger in a SQLite database. The engine enforces the single-writer,
// multi-reader model; the importer and crawler run as separate processes
// against the same file.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// ErrBadTransition signals a ledger update that would violate the
// pending/done/failed state machine.
var ErrBadTransition = errors.New("store: invalid ledger transition")

// Store wraps the SQLite handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Create removes any existing database at path and opens a fresh one.
// The importer calls this at the start of every run: a crash mid-import
// requires a full restart, not a resume.
func Create(path string) (*Store, error) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove old database: %w", err)
		}
	}
	return Open(path)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}
