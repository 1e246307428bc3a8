// Package testing provides test databases, fixtures and mocks for the studio.
package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/aristath/llamaforge/internal/database"
)

// NewTestDB creates a migrated studio database in a temporary directory.
// The database is closed when the test finishes.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), database.StudioName+".db"),
		Profile: database.ProfileStandard,
		Name:    database.StudioName,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// NewTestDBWithSchema creates an unmigrated database and executes schema on it
func NewTestDBWithSchema(t *testing.T, name string, schema string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}
	return db
}

// GetRawConnection returns the raw *sql.DB connection from a database.DB instance
func GetRawConnection(db *database.DB) *sql.DB {
	return db.Conn()
}
