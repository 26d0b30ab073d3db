package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tasklens/tasklens/internal/tlmodel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDoc() *tlmodel.DocumentState {
	d := tlmodel.NewDocumentState()
	d.Tasks["a"] = &tlmodel.Task{ID: "a", Title: "first", Status: tlmodel.StatusPending, Importance: 0.5}
	d.RootTaskIDs = []tlmodel.TaskID{"a"}
	return d
}

func TestSaveLoad_RoundTrips(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, "doc1", sampleDoc()); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, rev, ok, err := s.Load(ctx, "doc1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected document found")
	}
	if rev != 1 {
		t.Errorf("revision = %v, want 1", rev)
	}
	if loaded.Tasks["a"].Title != "first" {
		t.Errorf("task lost: %+v", loaded.Tasks["a"])
	}
}

func TestLoad_MissingDocumentNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	_, _, ok, err := s.Load(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected not found")
	}
}

func TestSave_BumpsRevisionOnEachWrite(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rev1, err := s.Save(ctx, "doc1", sampleDoc())
	if err != nil {
		t.Fatalf("save 1: %v", err)
	}
	rev2, err := s.Save(ctx, "doc1", sampleDoc())
	if err != nil {
		t.Fatalf("save 2: %v", err)
	}
	if rev2 != rev1+1 {
		t.Errorf("revision did not increment: %v -> %v", rev1, rev2)
	}
}

func TestRevision_MatchesLoad(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	s.Save(ctx, "doc1", sampleDoc())

	rev, ok, err := s.Revision(ctx, "doc1")
	if err != nil || !ok {
		t.Fatalf("revision: %v, ok=%v", err, ok)
	}
	_, loadRev, _, _ := s.Load(ctx, "doc1")
	if rev != loadRev {
		t.Errorf("Revision() = %v, Load() = %v", rev, loadRev)
	}
}

func TestDelete_RemovesDocument(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	s.Save(ctx, "doc1", sampleDoc())

	if err := s.Delete(ctx, "doc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, _, ok, _ := s.Load(ctx, "doc1")
	if ok {
		t.Errorf("expected document gone after delete")
	}
}

func TestOpen_RecreatesOnSchemaMismatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.db.Exec(`ALTER TABLE documents RENAME COLUMN data TO payload`); err != nil {
		t.Fatalf("corrupt schema: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen after schema mismatch: %v", err)
	}
	defer s2.Close()

	if _, _, ok, err := s2.Load(context.Background(), "doc1"); err != nil || ok {
		t.Fatalf("expected fresh empty store, got ok=%v err=%v", ok, err)
	}
}

func TestBackupRestore_RoundTrips(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if _, err := s.Save(ctx, "doc1", sampleDoc()); err != nil {
		t.Fatalf("save: %v", err)
	}

	backupDir := filepath.Join(dir, "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	backupPath, err := s.Backup(ctx, backupDir)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if _, err := os.Stat(backupPath); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	s.Close()

	if err := Restore(backupPath, dbPath); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen restored store: %v", err)
	}
	defer restored.Close()

	d, _, ok, err := restored.Load(ctx, "doc1")
	if err != nil || !ok {
		t.Fatalf("load after restore: ok=%v err=%v", ok, err)
	}
	if d.Tasks["a"].Title != "first" {
		t.Errorf("restored document lost data: %+v", d.Tasks["a"])
	}
}
