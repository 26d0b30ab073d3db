// Package store is the single-replica SQLite-backed persistence layer
// for a TaskLens document. Grounded on the teacher's internal/db/store.go
// almost directly: go:embed schema, WAL pragma, and the
// delete-and-recreate-on-schema-mismatch Open() are the same shape,
// narrowed from the teacher's many-table issue cache to a single
// document-blob table since a DocumentState is persisted and loaded
// whole (spec.md §3, §7) rather than queried relationally.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tasklens/tasklens/internal/cache"
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/wire"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the SQLite connection holding one or more documents.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a SQLite database at the given path. If the
// existing database has an incompatible schema, it is deleted and
// recreated, matching the teacher's cache-is-disposable recovery policy
// for what is, in both cases, a locally rebuildable store.
func Open(dbPath string) (*Store, error) {
	s, err := openDB(dbPath)
	if err != nil {
		if isSchemaMismatch(err) {
			if rmErr := os.Remove(dbPath); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, fmt.Errorf("remove incompatible store: %w", rmErr)
			}
			os.Remove(dbPath + "-wal")
			os.Remove(dbPath + "-shm")
			return openDB(dbPath)
		}
		return nil, err
	}
	return s, nil
}

func isSchemaMismatch(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "SQL logic error")
}

func openDB(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	escapedPath := strings.ReplaceAll(dbPath, " ", "%20")
	connStr := "file:" + escapedPath + "?_time_format=sqlite"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, for callers (e.g. Backup) that
// need to issue raw SQLite statements.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the filesystem path the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// WithTx runs fn inside a transaction, rolling back on any error and on
// panic, committing otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Save serializes d via internal/wire and upserts it under id, bumping
// the stored revision by one. The returned Revision is the cache
// invalidation key a caller should pass to cache.Projections.
func (s *Store) Save(ctx context.Context, id string, d *tlmodel.DocumentState) (cache.Revision, error) {
	data, err := wire.Marshal(d)
	if err != nil {
		return 0, fmt.Errorf("marshal document: %w", err)
	}

	var rev cache.Revision
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO documents (id, revision, data, updated_at)
			VALUES (?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				revision = documents.revision + 1,
				data = excluded.data,
				updated_at = excluded.updated_at
			RETURNING revision
		`, id, data, nowRFC3339())
		return row.Scan(&rev)
	})
	if err != nil {
		return 0, fmt.Errorf("save document %s: %w", id, err)
	}
	return rev, nil
}

// Load reads a document and its current revision. ok is false if no
// document exists under id (a distinct, non-error condition per the
// teacher's own getOrNil helpers elsewhere in the corpus).
func (s *Store) Load(ctx context.Context, id string) (*tlmodel.DocumentState, cache.Revision, bool, error) {
	var data []byte
	var rev cache.Revision
	row := s.db.QueryRowContext(ctx, `SELECT revision, data FROM documents WHERE id = ?`, id)
	if err := row.Scan(&rev, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("load document %s: %w", id, err)
	}

	d, err := wire.Unmarshal(data)
	if err != nil {
		return nil, 0, false, fmt.Errorf("decode document %s: %w", id, err)
	}
	return d, rev, true, nil
}

// Revision peeks the current revision for id without decoding the
// document body, useful for a cache-hit check before paying for Load.
func (s *Store) Revision(ctx context.Context, id string) (cache.Revision, bool, error) {
	var rev cache.Revision
	row := s.db.QueryRowContext(ctx, `SELECT revision FROM documents WHERE id = ?`, id)
	if err := row.Scan(&rev); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read revision %s: %w", id, err)
	}
	return rev, true, nil
}

// Delete removes a document entirely.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// nowRFC3339 formats the current instant for SQLite storage in UTC,
// stripping the monotonic clock reading, matching the teacher's Now().
func nowRFC3339() string {
	return time.Now().UTC().Round(0).Format(time.RFC3339Nano)
}

// DefaultDBPath returns the default database path under the user's
// config directory.
func DefaultDBPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}
	return filepath.Join(configDir, "tasklens", "store.db")
}
