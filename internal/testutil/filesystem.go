package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pbk-go/internal/pbk"
)

// MockFile represents a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Parent
// directories of added files are created implicitly. Individual operations
// can be made to fail per path.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile

	failOpen   map[string]error
	failCreate map[string]error
	failWrite  map[string]error
	failMkdir  map[string]error
	failRemove map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem containing only "/".
func NewMockFilesystemManager() *MockFilesystemManager {
	m := &MockFilesystemManager{
		files:      make(map[string]*MockFile),
		failOpen:   make(map[string]error),
		failCreate: make(map[string]error),
		failWrite:  make(map[string]error),
		failMkdir:  make(map[string]error),
		failRemove: make(map[string]error),
	}
	m.files["/"] = &MockFile{Permissions: 0755, IsDirectory: true}
	return m
}

// AddFile adds a file with the given content and a fixed modification time.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileWithTime(path, content, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

// AddFileWithTime adds a file with the given content and modification time.
func (m *MockFilesystemManager) AddFileWithTime(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.mkdirAllLocked(filepath.Dir(path))
	m.files[path] = &MockFile{
		Content:     append([]byte(nil), content...),
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory and its parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(filepath.Clean(path))
}

// FailOpen makes Open of path fail with err.
func (m *MockFilesystemManager) FailOpen(path string, err error) { m.setFail(m.failOpen, path, err) }

// FailCreate makes Create of path fail with err.
func (m *MockFilesystemManager) FailCreate(path string, err error) {
	m.setFail(m.failCreate, path, err)
}

// FailWrite makes writes to a file created at path fail with err.
func (m *MockFilesystemManager) FailWrite(path string, err error) { m.setFail(m.failWrite, path, err) }

// FailMkdir makes MkdirAll fail with err when it would create path.
func (m *MockFilesystemManager) FailMkdir(path string, err error) { m.setFail(m.failMkdir, path, err) }

// FailRemove makes Remove of path fail with err.
func (m *MockFilesystemManager) FailRemove(path string, err error) {
	m.setFail(m.failRemove, path, err)
}

func (m *MockFilesystemManager) setFail(set map[string]error, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set[filepath.Clean(path)] = err
}

// File returns the file at path, or nil.
func (m *MockFilesystemManager) File(path string) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[filepath.Clean(path)]
}

// Exists reports whether a file or directory exists at path.
func (m *MockFilesystemManager) Exists(path string) bool {
	return m.File(path) != nil
}

// Paths returns every regular file path in lexical order.
func (m *MockFilesystemManager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var paths []string
	for p, f := range m.files {
		if !f.IsDirectory {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	file, ok := m.files[path]
	if !ok {
		return nil, notExist("stat", path)
	}
	return newFileInfo(path, file), nil
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	if err := m.failOpen[path]; err != nil {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, notExist("open", path)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory as file: %s", path)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Create(path string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	if err := m.failCreate[path]; err != nil {
		return nil, err
	}
	parent, ok := m.files[filepath.Dir(path)]
	if !ok || !parent.IsDirectory {
		return nil, notExist("create", path)
	}
	if existing, ok := m.files[path]; ok && existing.IsDirectory {
		return nil, fmt.Errorf("is a directory: %s", path)
	}

	file := &MockFile{Permissions: 0644, ModTime: time.Now()}
	m.files[path] = file
	return &mockWriter{m: m, file: file, err: m.failWrite[path]}, nil
}

func (m *MockFilesystemManager) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	for p := path; ; p = filepath.Dir(p) {
		if f, ok := m.files[p]; ok {
			if !f.IsDirectory {
				return fmt.Errorf("not a directory: %s", p)
			}
			break
		}
		if err := m.failMkdir[p]; err != nil {
			return err
		}
		if p == filepath.Dir(p) {
			break
		}
	}
	m.mkdirAllLocked(path)
	return nil
}

func (m *MockFilesystemManager) mkdirAllLocked(path string) {
	for p := path; ; p = filepath.Dir(p) {
		if _, ok := m.files[p]; !ok {
			m.files[p] = &MockFile{Permissions: 0755, ModTime: time.Now(), IsDirectory: true}
		}
		if p == filepath.Dir(p) {
			return
		}
	}
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	if err := m.failRemove[path]; err != nil {
		return err
	}
	file, ok := m.files[path]
	if !ok {
		return notExist("remove", path)
	}
	if file.IsDirectory {
		for p := range m.files {
			if strings.HasPrefix(p, path+string(filepath.Separator)) {
				return fmt.Errorf("directory not empty: %s", path)
			}
		}
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystemManager) Chtimes(path string, atime, mtime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	file, ok := m.files[path]
	if !ok {
		return notExist("chtimes", path)
	}
	file.ModTime = mtime
	return nil
}

func (m *MockFilesystemManager) ReadDir(path string) ([]fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	dir, ok := m.files[path]
	if !ok {
		return nil, notExist("readdir", path)
	}
	if !dir.IsDirectory {
		return nil, fmt.Errorf("not a directory: %s", path)
	}

	var infos []fs.FileInfo
	for p, f := range m.files {
		if p != path && filepath.Dir(p) == path {
			infos = append(infos, newFileInfo(p, f))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

func (m *MockFilesystemManager) WalkFiles(root string, fn func(path string, info fs.FileInfo) error) error {
	m.mu.Lock()
	root = filepath.Clean(root)
	if _, ok := m.files[root]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("walking directory: %w", notExist("walk", root))
	}

	type entry struct {
		path string
		info fs.FileInfo
	}
	var entries []entry
	for p, f := range m.files {
		if !f.IsDirectory && strings.HasPrefix(p, root+string(filepath.Separator)) {
			entries = append(entries, entry{p, newFileInfo(p, f)})
		}
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
	for _, e := range entries {
		if err := fn(e.path, e.info); err != nil {
			return fmt.Errorf("walking directory: %w", err)
		}
	}
	return nil
}

// mockWriter commits written bytes to its file as they arrive.
type mockWriter struct {
	m    *MockFilesystemManager
	file *MockFile
	err  error
}

func (w *mockWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	w.file.Content = append(w.file.Content, p...)
	return len(p), nil
}

func (w *mockWriter) Close() error { return nil }

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newFileInfo(path string, f *MockFile) *mockFileInfo {
	mode := f.Permissions
	if f.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    mode,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ pbk.FilesystemManager = (*MockFilesystemManager)(nil)
