package pbk

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Snapshot is a standalone database copy in the snapshot directory.
type Snapshot struct {
	Path      string
	Name      string
	Size      int64
	CreatedAt time.Time
}

// SnapshotDatabase copies the database to <SnapshotDir>/<name>_<timestamp>.db.
// When checkIntegrity is set and the check fails, confirm decides whether to
// continue; declining returns ErrCancelled. Returns the snapshot path.
func (s *PBKService) SnapshotDatabase(databasePath string, checkIntegrity bool, confirm Confirmer) (string, error) {
	src := s.resolve(databasePath)
	ok, err := s.exists(src)
	if err != nil {
		return "", fmt.Errorf("checking database: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("database not found: %s", src)
	}

	if err := s.fsmgr.MkdirAll(s.opts.SnapshotDir); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	if checkIntegrity {
		if err := s.checkIntegrity(src); err != nil {
			s.logger.Warn("database integrity not confirmed", "path", src, "error", err)
			proceed, err := confirm.ask("Database integrity is not confirmed. Continue the snapshot?")
			if err != nil {
				return "", fmt.Errorf("reading confirmation: %w", err)
			}
			if !proceed {
				return "", ErrCancelled
			}
		}
	}

	name := SnapshotName(databasePath, Stamp(s.clock))
	dst := filepath.Join(s.opts.SnapshotDir, name)
	n, err := s.copyFile(src, dst)
	if err != nil {
		return "", fmt.Errorf("copying database: %w", err)
	}

	s.logger.Info("database snapshot created", "path", dst, "size", n)
	return dst, nil
}

// ListSnapshots returns the snapshots of the named database, newest first.
// A missing snapshot directory yields an empty list.
func (s *PBKService) ListSnapshots(databasePath string) ([]*Snapshot, error) {
	infos, err := s.fsmgr.ReadDir(s.opts.SnapshotDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	base := snapshotBase(databasePath)
	var snapshots []*Snapshot
	for _, info := range infos {
		if info.IsDir() || !isSnapshotOf(base, info.Name()) {
			continue
		}
		snapshots = append(snapshots, &Snapshot{
			Path:      filepath.Join(s.opts.SnapshotDir, info.Name()),
			Name:      info.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].Name > snapshots[j].Name
		}
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// isSnapshotOf reports whether name is <base>_<timestamp>.db or
// <base>_before_restore_<timestamp>.db.
func isSnapshotOf(base, name string) bool {
	rest, ok := strings.CutPrefix(name, base+"_")
	if !ok {
		return false
	}
	rest, ok = strings.CutSuffix(rest, ".db")
	if !ok {
		return false
	}
	rest = strings.TrimPrefix(rest, beforeRestoreInfix)
	_, err := time.Parse(TimestampLayout, rest)
	return err == nil
}

// CleanupSnapshots removes all but the newest keep snapshots and returns the
// number removed. A snapshot that cannot be removed is logged and skipped.
func (s *PBKService) CleanupSnapshots(databasePath string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative: %d", keep)
	}

	snapshots, err := s.ListSnapshots(databasePath)
	if err != nil {
		return 0, err
	}
	if len(snapshots) <= keep {
		return 0, nil
	}

	removed := 0
	for _, snap := range snapshots[keep:] {
		if err := s.fsmgr.Remove(snap.Path); err != nil {
			s.logger.Warn("could not remove snapshot", "path", snap.Path, "error", err)
			continue
		}
		removed++
		s.logger.Info("snapshot removed", "path", snap.Path)
	}
	return removed, nil
}
