// Package store is the materialized projection of every review's event
// log into a queryable relational shape. It is a disposable cache: the
// sync engine (internal/sync) is the only writer, and any reader can
// detect a stale or corrupted projection and rebuild it from the logs,
// which remain the durable source of truth.
//
// The embedded database and error-wrapping idiom are grounded on
// steveyegge-beads/internal/storage/sqlite (wrapDBError converts
// sql.ErrNoRows to a sentinel, every query/exec funnels through it),
// adapted to modernc.org/sqlite's pure-Go driver so crit never needs
// CGO to build.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Sentinel errors, mirroring bd's storage/sqlite/errors.go shape.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store wraps a single modernc.org/sqlite connection pool open against
// a project's .crit/index.db.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the projection database at path,
// applying the WAL pragma and the schema DDL. busy_timeout is set high
// enough that two agent processes syncing concurrently block briefly
// on each other's transaction rather than failing outright.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable wal: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-process, non-persistent store for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("store: open memory db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}

// wrapDBError converts sql.ErrNoRows to the package's ErrNotFound and
// attaches op context, matching bd's storage/sqlite/errors.go idiom.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
