package database

import (
	"path/filepath"
	"testing"
)

// NewTest opens a migrated SQLite database in the test's temp dir and closes
// it when the test ends.
func NewTest(t testing.TB) *Database {
	t.Helper()

	db, err := New("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
