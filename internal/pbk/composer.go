package pbk

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// RunBackup builds a full backup of the manifest sources and the optional
// database file under <BackupDir>/full_backup_<timestamp>.
//
// Only the failure to create the destination directories is returned as an
// error. Missing or uncopyable sources are recorded as skipped, and a report
// that cannot be written is recorded in Run.ReportErr.
//
// Two runs started within the same second target the same directory.
func (s *PBKService) RunBackup(manifest []ManifestEntry, databasePath string, versionNote string) (*Run, error) {
	now := s.clock.Now()
	run := &Run{
		ID:        s.idgen.New(),
		Project:   s.opts.ProjectName,
		Timestamp: now.Format(TimestampLayout),
		StartedAt: now,
	}
	run.Root = filepath.Join(s.opts.BackupDir, run.Name())

	s.logger.Info("backup started", "root", run.Root, "version", versionNote)

	for _, c := range Categories {
		dir := filepath.Join(run.Root, string(c))
		if err := s.fsmgr.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("creating backup directory %s: %w", dir, err)
		}
	}

	for _, entry := range manifest {
		run.record(s.copyEntry(run, entry))
	}

	if databasePath != "" {
		run.record(s.copyDatabase(run, databasePath))
	}

	size, err := s.totalSize(run.Root)
	if err != nil {
		s.logger.Warn("could not compute backup size", "root", run.Root, "error", err)
	}
	run.TotalSizeBytes = size

	readme := filepath.Join(run.Root, "README.md")
	if err := s.writeFile(readme, RenderReport(run, versionNote)); err != nil {
		run.ReportErr = fmt.Errorf("writing report: %w", err)
		s.logger.Error("report not written", "path", readme, "error", err)
	}

	fileList := filepath.Join(run.Root, "file_list.txt")
	if err := s.writeFile(fileList, RenderFileList(run, versionNote)); err != nil {
		s.logger.Error("file list not written", "path", fileList, "error", err)
	}

	if err := s.writeMeta(run, versionNote); err != nil {
		s.logger.Error("backup metadata not written", "root", run.Root, "error", err)
	}

	s.logger.Info("backup complete",
		"root", run.Root,
		"copied", len(run.CopiedFiles),
		"skipped", len(run.SkippedFiles),
		"size", run.TotalSizeBytes,
	)
	return run, nil
}

// copyEntry copies one manifest source into its category directory.
func (s *PBKService) copyEntry(run *Run, entry ManifestEntry) EntryResult {
	res := EntryResult{Source: entry.Path, Category: entry.Category, Status: StatusSkipped}

	if s.opts.Exclude != nil && s.opts.Exclude.Match(entry.Path) {
		res.Reason = ReasonExcluded
		s.logger.Warn("file excluded", "path", entry.Path)
		return res
	}

	src := s.resolve(entry.Path)
	ok, err := s.exists(src)
	if err != nil {
		res.Reason = "copy failed: " + err.Error()
		s.logger.Error("file not accessible", "path", entry.Path, "error", err)
		return res
	}
	if !ok {
		res.Reason = ReasonNotFound
		s.logger.Warn("file not found", "path", entry.Path)
		return res
	}

	dst := filepath.Join(run.Root, string(entry.Category), filepath.Base(entry.Path))
	if _, err := s.copyFile(src, dst); err != nil {
		res.Reason = "copy failed: " + err.Error()
		s.logger.Error("file copy failed", "path", entry.Path, "error", err)
		return res
	}

	res.Status = StatusCopied
	res.Destination = dst
	s.logger.Info("file copied", "path", entry.Path, "dest", dst)
	return res
}

// copyDatabase copies the database file to database/<name>_<timestamp>.db.
// The entry is recorded under the file name, like manifest sources. A failed
// integrity check is logged but does not prevent the copy.
func (s *PBKService) copyDatabase(run *Run, databasePath string) EntryResult {
	res := EntryResult{Source: filepath.Base(databasePath), Category: CategoryDatabase, Status: StatusSkipped}

	src := s.resolve(databasePath)
	ok, err := s.exists(src)
	if err != nil {
		res.Reason = "copy failed: " + err.Error()
		s.logger.Error("database not accessible", "path", databasePath, "error", err)
		return res
	}
	if !ok {
		res.Reason = ReasonNotFound
		s.logger.Warn("database not found", "path", databasePath)
		return res
	}

	if s.opts.CheckIntegrity {
		if err := s.checkIntegrity(src); err != nil {
			s.logger.Warn("database integrity not confirmed", "path", databasePath, "error", err)
		} else {
			s.logger.Info("database integrity confirmed", "path", databasePath)
		}
	}

	name := SnapshotName(databasePath, run.Timestamp)
	dst := filepath.Join(run.Root, string(CategoryDatabase), name)
	n, err := s.copyFile(src, dst)
	if err != nil {
		res.Reason = "copy failed: " + err.Error()
		s.logger.Error("database copy failed", "path", databasePath, "error", err)
		return res
	}

	res.Status = StatusCopied
	res.Destination = dst
	run.DatabaseFile = name
	s.logger.Info("database copied", "path", databasePath, "dest", dst, "size", n)
	return res
}

// SnapshotName returns <basename-without-ext>_<timestamp>.db for a database path.
func SnapshotName(databasePath, timestamp string) string {
	return snapshotBase(databasePath) + "_" + timestamp + ".db"
}

func snapshotBase(databasePath string) string {
	base := filepath.Base(databasePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// totalSize sums the sizes of all regular files under root.
func (s *PBKService) totalSize(root string) (int64, error) {
	var total int64
	err := s.fsmgr.WalkFiles(root, func(_ string, info fs.FileInfo) error {
		total += info.Size()
		return nil
	})
	return total, err
}

// writeFile writes content to path, replacing any existing file.
func (s *PBKService) writeFile(path, content string) error {
	f, err := s.fsmgr.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte(content)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
