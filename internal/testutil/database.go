package testutil

import (
	"testing"

	"pbk-go/internal/database"
	"pbk-go/internal/pbk"
)

// NewTestDatabase creates a new in-memory history database with migrations
// applied. The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) pbk.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
