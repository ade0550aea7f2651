package pbk

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MetaFileName is the machine-readable summary written into every backup.
const MetaFileName = "backup.yml"

// BackupMeta for backup directory
type BackupMeta struct {
	// Version of backup meta format
	Version int `yaml:"version"`
	// ID of the run that produced the backup
	ID string `yaml:"id"`
	// Timestamp of backup creation (20060102_150405)
	Timestamp string `yaml:"timestamp"`
	// Date of backup creation
	Date time.Time `yaml:"date"`
	// VersionNote given by the user
	VersionNote string `yaml:"version_note,omitempty"`

	Copied  []string `yaml:"copied"`
	Skipped []string `yaml:"skipped,omitempty"`

	// DatabaseFile contains the name of the database copy inside database/
	DatabaseFile string `yaml:"database_file,omitempty"`

	TotalSize int64 `yaml:"total_size"`
}

// BackupInfo describes a full backup found in the backup directory.
type BackupInfo struct {
	Name string
	Path string
	// Meta is nil when the backup has no readable backup.yml.
	Meta *BackupMeta
}

func (s *PBKService) writeMeta(run *Run, versionNote string) error {
	meta := &BackupMeta{
		Version:      1,
		ID:           run.ID,
		Timestamp:    run.Timestamp,
		Date:         run.StartedAt,
		VersionNote:  versionNote,
		Copied:       run.CopiedFiles,
		Skipped:      run.SkippedFiles,
		DatabaseFile: run.DatabaseFile,
		TotalSize:    run.TotalSizeBytes,
	}

	w, err := s.fsmgr.Create(filepath.Join(run.Root, MetaFileName))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", MetaFileName, err)
	}
	if err := yaml.NewEncoder(w).Encode(meta); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", MetaFileName, err)
	}
	return w.Close()
}

// ReadMeta reads backup.yml from a backup directory.
func (s *PBKService) ReadMeta(root string) (*BackupMeta, error) {
	r, err := s.fsmgr.Open(filepath.Join(root, MetaFileName))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", MetaFileName, err)
	}
	defer r.Close()

	var meta BackupMeta
	if err := yaml.NewDecoder(r).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", MetaFileName, err)
	}
	return &meta, nil
}

// ListBackups returns the full backups in the backup directory, newest first.
// A missing backup directory yields an empty list.
func (s *PBKService) ListBackups() ([]*BackupInfo, error) {
	infos, err := s.fsmgr.ReadDir(s.opts.BackupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []*BackupInfo
	for _, info := range infos {
		if !info.IsDir() || !strings.HasPrefix(info.Name(), BackupDirName("")) {
			continue
		}
		b := &BackupInfo{
			Name: info.Name(),
			Path: filepath.Join(s.opts.BackupDir, info.Name()),
		}
		meta, err := s.ReadMeta(b.Path)
		if err != nil {
			s.logger.Debug("backup has no readable metadata", "path", b.Path, "error", err)
		} else {
			b.Meta = meta
		}
		backups = append(backups, b)
	}

	// Names embed a sortable timestamp.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}
