package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.emberdb")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.emberdb")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.emberdb")

	// Open multiple times
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	// Final open should work
	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	tables := []string{"meta", "objects"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.emberdb"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", MemoryPath, err)
	}
	defer s.Close()

	if _, found, err := s.LoadMeta(t.Context()); err != nil || found {
		t.Errorf("LoadMeta() on fresh memory store = found %v, err %v", found, err)
	}
}

func TestOpen_RejectsNewerFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.emberdb")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if _, err := Open(path); err == nil {
		t.Error("expected error for newer file format, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.emberdb")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)

	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_UserVersion(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_MetaTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "meta")
	for _, col := range []string{"key", "value"} {
		if !contains(columns, col) {
			t.Errorf("meta table missing column %q", col)
		}
	}
}

func TestSchema_ObjectsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "objects")
	for _, col := range []string{"type", "id", "ord", "data"} {
		if !contains(columns, col) {
			t.Errorf("objects table missing column %q", col)
		}
	}

	indexes := getTableIndexes(t, s.db, "objects")
	if !contains(indexes, "idx_objects_type_ord") {
		t.Error("objects table missing index idx_objects_type_ord")
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
