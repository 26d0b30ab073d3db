package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-strftime"
)

// backupNameFormat names a backup file after the moment it was taken,
// sortable lexicographically the same way chronologically.
const backupNameFormat = "tasklens-%Y%m%dT%H%M%S.db"

// Backup runs SQLite's VACUUM INTO to write a consistent snapshot of the
// store into dir, named with the current timestamp, and returns the
// path written.
func (s *Store) Backup(ctx context.Context, dir string) (string, error) {
	name := strftime.Format(backupNameFormat, time.Now().UTC())
	dest := filepath.Join(dir, name)

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return "", fmt.Errorf("backup store to %s: %w", dest, err)
	}
	return dest, nil
}

// Restore replaces the database at dbPath with the contents of a backup
// file written by Backup. The caller must not hold an open Store for
// dbPath while calling this; reopen with Open afterward.
func Restore(backupPath, dbPath string) error {
	restored, err := openDB(backupPath)
	if err != nil {
		return fmt.Errorf("open backup %s: %w", backupPath, err)
	}
	defer restored.Close()

	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing store %s: %w", dbPath, err)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	if _, err := restored.db.Exec(`VACUUM INTO ?`, dbPath); err != nil {
		return fmt.Errorf("restore backup into %s: %w", dbPath, err)
	}
	return nil
}
