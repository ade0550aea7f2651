package pbk

import (
	"io"
	"io/fs"
	"time"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
// All paths are plain strings; relative paths are interpreted against the
// process working directory.
type FilesystemManager interface {
	// Stat returns file info for a path. Missing paths yield an error
	// satisfying errors.Is(err, fs.ErrNotExist).
	Stat(path string) (fs.FileInfo, error)

	// Open opens a regular file for reading.
	Open(path string) (io.ReadCloser, error)

	// Create creates or truncates a file for writing.
	Create(path string) (io.WriteCloser, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// Remove deletes a single file.
	Remove(path string) error

	// Chtimes sets the access and modification times of a file.
	Chtimes(path string, atime, mtime time.Time) error

	// ReadDir returns info for the direct children of a directory.
	ReadDir(path string) ([]fs.FileInfo, error)

	// WalkFiles calls fn for every regular file under root, recursively.
	WalkFiles(root string, fn func(path string, info fs.FileInfo) error) error
}

// Matcher reports whether a manifest path must not be copied.
type Matcher interface {
	Match(relativePath string) bool
}
