package lockbyte

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"lockbyte/internal/container"
)

// maxNameProbes bounds the search for a free output name.
const maxNameProbes = 10000

// DecryptedMarker is inserted before the extension of a decrypted file.
const DecryptedMarker = "_decrypted"

// NameStyle selects where a collision counter goes.
type NameStyle int

const (
	// CounterAtEnd appends the counter: "a.txt.lockbyte(1)".
	CounterAtEnd NameStyle = iota
	// CounterBeforeExt inserts it before the extension: "a_decrypted(1).txt".
	CounterBeforeExt
)

var collisionSuffix = regexp.MustCompile(`\.lockbyte\(\d+\)$`)

// EncryptedName returns the preferred container path for source.
func EncryptedName(source string) string {
	return source + container.Extension
}

// IsContainerName reports whether path names a container, including the
// "(N)" variants produced by name collisions. It accepts exactly the names
// DecryptedName strips a container suffix from.
func IsContainerName(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, container.Extension) || collisionSuffix.MatchString(base)
}

// DecryptedName returns the preferred plaintext path for a container. Exactly
// the trailing ".lockbyte" (or ".lockbyte(N)") is stripped, then the marker is
// placed before the last extension of what remains.
func DecryptedName(source string) string {
	dir, base := filepath.Split(source)
	switch {
	case strings.HasSuffix(base, container.Extension):
		base = strings.TrimSuffix(base, container.Extension)
	case collisionSuffix.MatchString(base):
		base = collisionSuffix.ReplaceAllString(base, "")
	}
	stem, ext := splitExt(base)
	return dir + stem + DecryptedMarker + ext
}

// splitExt splits name into stem and extension. A leading dot does not start
// an extension, so ".bashrc" has none.
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

func withCounter(name string, n int, style NameStyle) string {
	if style == CounterAtEnd {
		return fmt.Sprintf("%s(%d)", name, n)
	}
	dir, base := filepath.Split(name)
	stem, ext := splitExt(base)
	return fmt.Sprintf("%s%s(%d)%s", dir, stem, n, ext)
}

// UniqueName probes name, then name with counters 1, 2, ... and returns the
// first candidate that does not exist. Another process can still claim the
// name between the probe and the write; callers create the file exclusively
// and probe again when that happens.
func UniqueName(fsmgr FilesystemManager, name string, style NameStyle) (string, error) {
	candidate := name
	for i := 1; i <= maxNameProbes; i++ {
		exists, err := fsmgr.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("probing %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = withCounter(name, i, style)
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", name, maxNameProbes)
}
