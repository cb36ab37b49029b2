package lockbyte

// FilesystemManager provides the filesystem primitives the engines need.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// FindFiles returns every regular file below a directory, recursively,
	// skipping anything matched by the manager's ignore patterns.
	FindFiles(dir *Path) ([]*Path, error)

	// ReadFile reads a whole file into memory.
	ReadFile(path string) ([]byte, error)

	// CreateFile writes data to a new file. It fails with an error matching
	// fs.ErrExist if the path is already taken.
	CreateFile(path string, data []byte) error

	// Remove deletes a file.
	Remove(path string) error

	// Exists reports whether anything exists at path.
	Exists(path string) (bool, error)
}
