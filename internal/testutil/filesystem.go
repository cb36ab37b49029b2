package testutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"lockbyte/internal/lockbyte"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. It is safe
// for concurrent use so batch workers can share it.
type MockFilesystemManager struct {
	mu          sync.Mutex
	files       map[string]*MockFile
	readErrors  map[string]error
	createError map[string]error
	onCreate    func(path string)
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:       make(map[string]*MockFile),
		readErrors:  make(map[string]error),
		createError: make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Content:     append([]byte(nil), content...),
		Permissions: 0644,
		ModTime:     time.Now(),
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Now(),
		IsDirectory: true,
	}
}

// FailRead makes every ReadFile of path return err.
func (m *MockFilesystemManager) FailRead(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrors[path] = err
}

// FailCreate makes every CreateFile of path return err.
func (m *MockFilesystemManager) FailCreate(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createError[path] = err
}

// OnCreate registers fn to run after each successful CreateFile, outside
// the manager's lock.
func (m *MockFilesystemManager) OnCreate(fn func(path string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCreate = fn
}

// Content returns a copy of the file at path and whether it exists.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return append([]byte(nil), f.Content...), true
}

// SetContent replaces the content of an existing file.
func (m *MockFilesystemManager) SetContent(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[path]; ok {
		f.Content = append([]byte(nil), content...)
		f.ModTime = time.Now()
	}
}

// Files returns the sorted paths of all regular files.
func (m *MockFilesystemManager) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p, f := range m.files {
		if !f.IsDirectory {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*lockbyte.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: absPath, Err: fs.ErrNotExist}
	}
	return lockbyte.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) FindFiles(dir *lockbyte.Path) ([]*lockbyte.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(dir.String(), "/") + "/"
	var paths []*lockbyte.Path
	for p, f := range m.files {
		if f.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		paths = append(paths, lockbyte.NewPath(p, false, newMockFileInfo(p, f)))
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths, nil
}

func (m *MockFilesystemManager) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.readErrors[path]; ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	f, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("cannot read directory: %s", path)
	}
	return append([]byte(nil), f.Content...), nil
}

func (m *MockFilesystemManager) CreateFile(path string, data []byte) error {
	m.mu.Lock()
	if err, ok := m.createError[path]; ok {
		m.mu.Unlock()
		return &fs.PathError{Op: "open", Path: path, Err: err}
	}
	if _, ok := m.files[path]; ok {
		m.mu.Unlock()
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrExist}
	}
	m.files[path] = &MockFile{
		Content:     append([]byte(nil), data...),
		Permissions: 0644,
		ModTime:     time.Now(),
	}
	hook := m.onCreate
	m.mu.Unlock()

	if hook != nil {
		hook(path)
	}
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystemManager) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    f.Permissions,
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
var _ lockbyte.FilesystemManager = (*MockFilesystemManager)(nil)
