package model

import (
	"database/sql"
	"time"
)

// Operation is a CLI command recorded in the history database.
type Operation struct {
	ID         int64 // auto-increment
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "running", "success" or "error"
}

// BackupRun is the persisted summary of a completed composer run.
type BackupRun struct {
	ID           string // UUID
	OperationID  int64  // 0 when recorded outside an operation
	Timestamp    string // 20060102_150405
	Root         string
	CopiedCount  int
	SkippedCount int
	TotalSize    int64
	VersionNote  string
	CreatedAt    time.Time
}
