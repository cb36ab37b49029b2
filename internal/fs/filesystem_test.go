package fs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
}

func relPaths(t *testing.T, root string, m *OSFilesystemManager) []string {
	t.Helper()
	dir, err := m.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	found, err := m.FindFiles(dir)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	var out []string
	for _, p := range found {
		rel, _ := filepath.Rel(root, p.String())
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	writeTree(t, dir, map[string]string{"a.txt": "hello"})
	m := NewOSFilesystemManager(nil, nil)

	p, err := m.Resolve(file)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.IsDir() || p.Size() != 5 {
		t.Errorf("Resolve() = dir %v size %d, want file of 5 bytes", p.IsDir(), p.Size())
	}

	d, err := m.Resolve(dir)
	if err != nil || !d.IsDir() {
		t.Errorf("Resolve(dir) = %v, %v; want directory", d, err)
	}

	if _, err := m.Resolve(filepath.Join(dir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Resolve(missing) error = %v, want %v", err, fs.ErrNotExist)
	}

	link := filepath.Join(dir, "link")
	if err := os.Symlink(file, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := m.Resolve(link); err == nil {
		t.Error("Resolve(symlink) expected error")
	}
}

func TestOSFilesystemManager_FindFiles(t *testing.T) {
	t.Run("walks recursively", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"a.txt":          "a",
			"sub/b.txt":      "b",
			"sub/deep/c.bin": "c",
			"sub/deep/d.txt": "d",
		})

		got := relPaths(t, root, NewOSFilesystemManager(nil, nil))
		want := []string{"a.txt", "sub/b.txt", "sub/deep/c.bin", "sub/deep/d.txt"}
		if len(got) != len(want) {
			t.Fatalf("FindFiles() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("FindFiles()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("applies configured ignore patterns", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"keep.txt":         "k",
			"skip.tmp":         "s",
			"repo/.git/HEAD":   "ref",
			"repo/src/main.go": "package main",
		})

		got := relPaths(t, root, NewOSFilesystemManager([]string{"*.tmp", "**/.git"}, nil))
		want := []string{"keep.txt", "repo/src/main.go"}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("FindFiles() = %v, want %v", got, want)
		}
	})

	t.Run("honours per-directory ignore files", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"top.log":                "1",
			"logs/" + IgnoreFileName: "*.log\n",
			"logs/app.log":           "2",
			"logs/keep.txt":          "3",
		})

		got := relPaths(t, root, NewOSFilesystemManager(nil, nil))
		want := []string{"logs/keep.txt", "top.log"}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("FindFiles() = %v, want %v", got, want)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		t.Parallel()
		if got := relPaths(t, t.TempDir(), NewOSFilesystemManager(nil, nil)); len(got) != 0 {
			t.Errorf("FindFiles() = %v, want none", got)
		}
	})

	t.Run("rejects a file", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{"f": "x"})
		m := NewOSFilesystemManager(nil, nil)
		p, err := m.Resolve(filepath.Join(root, "f"))
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if _, err := m.FindFiles(p); err == nil {
			t.Error("FindFiles(file) expected error")
		}
	})
}

func TestOSFilesystemManager_CreateFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	m := NewOSFilesystemManager(nil, nil)

	if err := m.CreateFile(path, []byte("first")); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	if err := m.CreateFile(path, []byte("second")); !errors.Is(err, fs.ErrExist) {
		t.Errorf("CreateFile(existing) error = %v, want %v", err, fs.ErrExist)
	}

	got, err := m.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "first" {
		t.Errorf("ReadFile() = %q, want %q", got, "first")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}

func TestOSFilesystemManager_ExistsRemove(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	m := NewOSFilesystemManager(nil, nil)

	if ok, err := m.Exists(path); err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", ok, err)
	}
	writeTree(t, dir, map[string]string{"f": "x"})
	if ok, err := m.Exists(path); err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want true, nil", ok, err)
	}
	if err := m.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := m.Remove(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove(missing) error = %v, want %v", err, fs.ErrNotExist)
	}
}
