package pbk

import "time"

// TimestampLayout is the sortable timestamp used in backup directory and
// snapshot file names.
const TimestampLayout = "20060102_150405"

// EntryStatus is the outcome of a single file in a run.
type EntryStatus string

const (
	StatusCopied  EntryStatus = "copied"
	StatusSkipped EntryStatus = "skipped"
)

// Skip reasons recorded in EntryResult.Reason.
const (
	ReasonNotFound = "not found"
	ReasonExcluded = "excluded"
)

// EntryResult records what happened to one manifest entry or the database file.
type EntryResult struct {
	Source      string
	Category    Category
	Destination string // empty when skipped
	Status      EntryStatus
	Reason      string // empty when copied
}

// Run is one execution of the backup composer, identified by its timestamp.
//
// CopiedFiles and SkippedFiles partition the manifest sources plus the
// database path (when one was given), in manifest order with the database last.
type Run struct {
	ID             string
	Project        string
	Timestamp      string
	StartedAt      time.Time
	Root           string
	CopiedFiles    []string
	SkippedFiles   []string
	TotalSizeBytes int64
	Entries        []EntryResult

	// DatabaseFile is the name of the database copy inside database/,
	// empty if no database was copied.
	DatabaseFile string

	// ReportErr is set when README.md could not be written. The run
	// itself is still considered complete.
	ReportErr error
}

// Name returns the backup directory name, e.g. full_backup_20240115_103000.
func (r *Run) Name() string {
	return BackupDirName(r.Timestamp)
}

// BackupDirName returns the directory name used for a run with the given timestamp.
func BackupDirName(timestamp string) string {
	return "full_backup_" + timestamp
}

func (r *Run) record(res EntryResult) {
	r.Entries = append(r.Entries, res)
	if res.Status == StatusCopied {
		r.CopiedFiles = append(r.CopiedFiles, res.Source)
	} else {
		r.SkippedFiles = append(r.SkippedFiles, res.Source)
	}
}

// entriesIn returns the copied entries of a category, in run order.
func (r *Run) entriesIn(c Category) []EntryResult {
	var out []EntryResult
	for _, e := range r.Entries {
		if e.Category == c && e.Status == StatusCopied {
			out = append(out, e)
		}
	}
	return out
}

// skipReason returns the recorded reason for a skipped source.
func (r *Run) skipReason(source string) string {
	for _, e := range r.Entries {
		if e.Source == source && e.Status == StatusSkipped {
			return e.Reason
		}
	}
	return ""
}
