package pbk

import (
	"errors"
	"fmt"

	"pbk-go/internal/model"
)

// ErrNoHistory is returned by history operations when no database is configured.
var ErrNoHistory = errors.New("no history database configured")

// RecordRun stores the summary of a completed run in the history database.
// operationID links the run to the CLI operation that produced it.
func (s *PBKService) RecordRun(run *Run, operationID int64, versionNote string) error {
	if s.database == nil {
		return ErrNoHistory
	}
	rec := &model.BackupRun{
		ID:           run.ID,
		OperationID:  operationID,
		Timestamp:    run.Timestamp,
		Root:         run.Root,
		CopiedCount:  len(run.CopiedFiles),
		SkippedCount: len(run.SkippedFiles),
		TotalSize:    run.TotalSizeBytes,
		VersionNote:  versionNote,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.database.CreateBackupRun(rec); err != nil {
		return fmt.Errorf("recording backup run: %w", err)
	}
	return nil
}

// GetHistory returns the most recent operations, ordered newest first.
func (s *PBKService) GetHistory(limit int) ([]*model.Operation, error) {
	if s.database == nil {
		return nil, ErrNoHistory
	}
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// GetRuns returns the most recent backup runs, ordered newest first.
func (s *PBKService) GetRuns(limit int) ([]*model.BackupRun, error) {
	if s.database == nil {
		return nil, ErrNoHistory
	}
	runs, err := s.database.ListBackupRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing backup runs: %w", err)
	}
	return runs, nil
}
