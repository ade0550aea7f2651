package app

import "time"

// Operation status values stored in the history database.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks the CLI command being run. Operations are created in
// memory with ID=0. Only commands that change the project or its backups
// persist them, which assigns an auto-increment ID from the history database.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	Status     string
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string, startedAt time.Time) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = StatusError
	}
	return err
}
