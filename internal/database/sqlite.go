package database

import (
	"database/sql"
	"fmt"
	"time"

	"pbk-go/internal/database/migrations"
	"pbk-go/internal/model"
	"pbk-go/internal/pbk"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the history Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the history database at path and migrates it to
// the latest schema. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured
// and migrated.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database, and the history
	// store is only ever used from one goroutine at a time.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// CheckMigrations verifies that the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Operation records

func (s *SQLiteDatabase) CreateOperation(operation, parameters string, startedAt time.Time) (*model.Operation, error) {
	res, err := s.db.Exec(
		`INSERT INTO operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'running')`,
		operation, parameters, startedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}

	return &model.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt.UTC(),
		Status:     "running",
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string, finishedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("operation not found: %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM operations ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		var op model.Operation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Backup run records

func (s *SQLiteDatabase) CreateBackupRun(run *model.BackupRun) error {
	var opID sql.NullInt64
	if run.OperationID != 0 {
		opID = sql.NullInt64{Int64: run.OperationID, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO backup_runs
		 (id, operation_id, timestamp, root, copied_count, skipped_count, total_size, version_note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, opID, run.Timestamp, run.Root, run.CopiedCount, run.SkippedCount,
		run.TotalSize, run.VersionNote, run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting backup run: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListBackupRuns(limit int) ([]*model.BackupRun, error) {
	rows, err := s.db.Query(
		`SELECT id, operation_id, timestamp, root, copied_count, skipped_count, total_size, version_note, created_at
		 FROM backup_runs ORDER BY created_at DESC, timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing backup runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.BackupRun
	for rows.Next() {
		var run model.BackupRun
		var opID sql.NullInt64
		if err := rows.Scan(&run.ID, &opID, &run.Timestamp, &run.Root, &run.CopiedCount,
			&run.SkippedCount, &run.TotalSize, &run.VersionNote, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning backup run: %w", err)
		}
		run.OperationID = opID.Int64
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing backup runs: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteDatabase implements pbk.Database interface
var _ pbk.Database = (*SQLiteDatabase)(nil)
