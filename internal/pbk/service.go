package pbk

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
)

// Options holds the project layout the service operates on.
type Options struct {
	// ProjectName appears in the generated report title.
	ProjectName string

	// SourceDir is the project root. Relative manifest and database paths
	// are resolved against it.
	SourceDir string

	// BackupDir receives full_backup_<timestamp> directories.
	BackupDir string

	// SnapshotDir receives standalone database snapshots.
	SnapshotDir string

	// CheckIntegrity enables the database integrity check before the
	// database is copied by RunBackup.
	CheckIntegrity bool

	// Exclude rejects manifest paths that must never be copied. May be nil.
	Exclude Matcher
}

// PBKService is the orchestration layer that coordinates across all components
// to perform the backup operations needed by the CLI.
type PBKService struct {
	opts      Options
	database  Database
	fsmgr     FilesystemManager
	integrity IntegrityChecker
	vault     Vault
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewPBKService creates a new PBKService with the provided dependencies.
// database, integrity, vault and encryptor may be nil; the operations that
// need them then fail or skip the corresponding step.
func NewPBKService(opts Options, database Database, fsmgr FilesystemManager, integrity IntegrityChecker, vault Vault, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator) *PBKService {
	return &PBKService{
		opts:      opts,
		database:  database,
		fsmgr:     fsmgr,
		integrity: integrity,
		vault:     vault,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// resolve interprets p relative to the source directory unless it is absolute.
func (s *PBKService) resolve(p string) string {
	if filepath.IsAbs(p) || s.opts.SourceDir == "" {
		return p
	}
	return filepath.Join(s.opts.SourceDir, p)
}

// exists reports whether path exists. Errors other than "not exist" are returned.
func (s *PBKService) exists(path string) (bool, error) {
	_, err := s.fsmgr.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// copyFile copies src to dst verbatim and carries over the modification time.
// A partially written dst is removed on failure.
func (s *PBKService) copyFile(src, dst string) (int64, error) {
	info, err := s.fsmgr.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("source is a directory: %s", src)
	}

	in, err := s.fsmgr.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := s.fsmgr.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("creating destination: %w", err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		s.fsmgr.Remove(dst)
		return 0, fmt.Errorf("copying data: %w", err)
	}
	if err := out.Close(); err != nil {
		s.fsmgr.Remove(dst)
		return 0, fmt.Errorf("closing destination: %w", err)
	}

	if err := s.fsmgr.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		s.logger.Debug("could not preserve modification time", "path", dst, "error", err)
	}

	return n, nil
}

// checkIntegrity runs the configured checker. It returns nil when no
// checker is configured.
func (s *PBKService) checkIntegrity(path string) error {
	if s.integrity == nil {
		return nil
	}
	return s.integrity.CheckIntegrity(path)
}
