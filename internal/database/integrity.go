package database

import (
	"database/sql"
	"fmt"
	"net/url"

	"pbk-go/internal/pbk"
)

// SQLiteIntegrityChecker runs PRAGMA integrity_check against a database file.
type SQLiteIntegrityChecker struct{}

// NewSQLiteIntegrityChecker creates a new SQLiteIntegrityChecker.
func NewSQLiteIntegrityChecker() *SQLiteIntegrityChecker {
	return &SQLiteIntegrityChecker{}
}

// CheckIntegrity opens path read-only and returns nil if SQLite reports "ok".
// A database that opens but reports problems yields an error wrapping
// pbk.ErrIntegrity with the first reported problem.
func (c *SQLiteIntegrityChecker) CheckIntegrity(path string) error {
	// mode=ro keeps the check from creating a missing file.
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", pbk.ErrIntegrity, result)
	}
	return nil
}

// Compile-time check that SQLiteIntegrityChecker implements pbk.IntegrityChecker interface
var _ pbk.IntegrityChecker = (*SQLiteIntegrityChecker)(nil)
