package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/codr1/Picklepoint/internal/db"
	"github.com/codr1/Picklepoint/internal/models"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedCourts stores courts and returns them with their assigned IDs.
func SeedCourts(t *testing.T, store *db.Store, courts ...models.Court) []models.Court {
	t.Helper()

	saved, err := store.UpsertCourts(context.Background(), courts)
	if err != nil {
		t.Fatalf("seed courts: %v", err)
	}
	return saved
}
