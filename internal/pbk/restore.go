package pbk

import (
	"fmt"
	"path/filepath"
)

// beforeRestoreInfix marks the copy of a database taken just before a restore.
const beforeRestoreInfix = "before_restore_"

// RestoreOptions controls RestoreDatabase.
type RestoreOptions struct {
	// BackupBefore copies the current target into the snapshot directory
	// as <name>_before_restore_<timestamp>.db before it is replaced.
	BackupBefore bool

	// CheckIntegrity verifies the backup before and the target after the restore.
	CheckIntegrity bool
}

// RestoreResult describes a completed restore.
type RestoreResult struct {
	Target           string
	Size             int64
	PreRestoreBackup string // empty if none was made
	IntegrityOK      bool   // false if unchecked or the check failed
}

// RestoreDatabase replaces target with the database at backupPath.
//
// A failed integrity check of the backup, or a failed pre-restore copy, asks
// confirm whether to continue; declining returns ErrCancelled and leaves the
// target untouched.
func (s *PBKService) RestoreDatabase(backupPath, target string, opts RestoreOptions, confirm Confirmer) (*RestoreResult, error) {
	ok, err := s.exists(backupPath)
	if err != nil {
		return nil, fmt.Errorf("checking backup: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("backup not found: %s", backupPath)
	}

	targetPath := s.resolve(target)
	if filepath.Clean(backupPath) == filepath.Clean(targetPath) {
		return nil, fmt.Errorf("backup and target are the same file: %s", targetPath)
	}

	s.logger.Info("restore started", "backup", backupPath, "target", target)

	if opts.CheckIntegrity {
		if err := s.checkIntegrity(backupPath); err != nil {
			s.logger.Warn("backup integrity not confirmed", "path", backupPath, "error", err)
			proceed, err := confirm.ask("Backup integrity is not confirmed. Continue the restore?")
			if err != nil {
				return nil, fmt.Errorf("reading confirmation: %w", err)
			}
			if !proceed {
				return nil, ErrCancelled
			}
		}
	}

	targetExists, err := s.exists(targetPath)
	if err != nil {
		return nil, fmt.Errorf("checking target: %w", err)
	}

	result := &RestoreResult{Target: targetPath}

	if opts.BackupBefore && targetExists {
		before, err := s.backupBeforeRestore(targetPath)
		if err != nil {
			s.logger.Warn("pre-restore backup failed", "path", targetPath, "error", err)
			proceed, err := confirm.ask("Could not back up the current database. Continue the restore?")
			if err != nil {
				return nil, fmt.Errorf("reading confirmation: %w", err)
			}
			if !proceed {
				return nil, ErrCancelled
			}
		} else {
			result.PreRestoreBackup = before
			s.logger.Info("pre-restore backup created", "path", before)
		}
	}

	if targetExists {
		if err := s.fsmgr.Remove(targetPath); err != nil {
			return nil, fmt.Errorf("removing current database: %w", err)
		}
	}

	n, err := s.copyFile(backupPath, targetPath)
	if err != nil {
		return nil, fmt.Errorf("restoring database: %w", err)
	}
	result.Size = n

	if opts.CheckIntegrity {
		if err := s.checkIntegrity(targetPath); err != nil {
			s.logger.Warn("restored database integrity not confirmed", "path", targetPath, "error", err)
		} else {
			result.IntegrityOK = true
		}
	}

	s.logger.Info("restore complete", "target", targetPath, "size", n)
	return result, nil
}

func (s *PBKService) backupBeforeRestore(targetPath string) (string, error) {
	if err := s.fsmgr.MkdirAll(s.opts.SnapshotDir); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	name := snapshotBase(targetPath) + "_" + beforeRestoreInfix + Stamp(s.clock) + ".db"
	dst := filepath.Join(s.opts.SnapshotDir, name)
	if _, err := s.copyFile(targetPath, dst); err != nil {
		return "", err
	}
	return dst, nil
}
