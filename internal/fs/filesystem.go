package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"lockbyte/internal/lockbyte"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
	logger lockbyte.Logger
}

// NewOSFilesystemManager creates a filesystem manager that skips files matched
// by ignorePatterns during directory walks.
func NewOSFilesystemManager(ignorePatterns []string, logger lockbyte.Logger) *OSFilesystemManager {
	if logger == nil {
		logger = lockbyte.NewNopLogger()
	}
	patterns := append(append([]string(nil), defaultIgnorePatterns...), ignorePatterns...)
	return &OSFilesystemManager{
		ignore: NewIgnoreMatcher(patterns),
		logger: logger,
	}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*lockbyte.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return lockbyte.NewPath(absPath, info.IsDir(), info), nil
}

// FindFiles discovers regular files under dir, recursively. Subdirectories
// that cannot be read are skipped with a warning; failing to read dir itself
// is an error. Each directory's ignore file applies to everything below it.
func (m *OSFilesystemManager) FindFiles(dir *lockbyte.Path) ([]*lockbyte.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	root := dir.String()
	matchers := map[string]*IgnoreMatcher{}
	var paths []*lockbyte.Path

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			m.logger.Warn("skipping unreadable path", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return fmt.Errorf("relative path for %s: %w", p, relErr)
		}
		matcher := m.ignore
		if parent, ok := matchers[filepath.Dir(p)]; ok {
			matcher = parent
		}

		if d.IsDir() {
			if p != root && matcher.Match(rel) {
				return filepath.SkipDir
			}
			extra, err := ParseIgnoreFile(filepath.Join(p, IgnoreFileName))
			if err != nil {
				m.logger.Warn("ignoring unreadable ignore file", "dir", p, "error", err)
			}
			matchers[p] = matcher.With(extra)
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			m.logger.Warn("skipping file that vanished during walk", "path", p, "error", err)
			return nil
		}
		paths = append(paths, lockbyte.NewPath(p, false, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return paths, nil
}

// ReadFile reads a whole file into memory.
func (m *OSFilesystemManager) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// CreateFile writes data to a new file, failing if path already exists. A
// partially written file is removed.
func (m *OSFilesystemManager) CreateFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// Remove deletes a file.
func (m *OSFilesystemManager) Remove(path string) error {
	return os.Remove(path)
}

// Exists reports whether anything, including a dangling symlink, exists at path.
func (m *OSFilesystemManager) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Compile-time check that OSFilesystemManager implements lockbyte.FilesystemManager
var _ lockbyte.FilesystemManager = (*OSFilesystemManager)(nil)
