package pbk

import (
	"time"

	"pbk-go/internal/model"
)

// Database provides an interface for the run history store.
type Database interface {
	// CreateOperation records the start of a CLI operation and returns it
	// with its assigned ID.
	CreateOperation(operation, parameters string, startedAt time.Time) (*model.Operation, error)

	// FinishOperation marks an operation as finished with the given status.
	FinishOperation(id int64, status string, finishedAt time.Time) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// CreateBackupRun records a completed composer run.
	CreateBackupRun(run *model.BackupRun) error

	// ListBackupRuns returns the most recent runs, newest first.
	ListBackupRuns(limit int) ([]*model.BackupRun, error)

	// Close closes the database connection.
	Close() error
}
