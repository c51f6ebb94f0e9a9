package release

import (
	"os"
	"path/filepath"
)

// OSFileSystem is a FileSystem rooted at a directory on local disk.
type OSFileSystem struct {
	root string
}

// NewOSFileSystem creates a FileSystem resolving relative paths against root.
func NewOSFileSystem(root string) *OSFileSystem {
	return &OSFileSystem{root: root}
}

func (f *OSFileSystem) resolve(path string) string {
	if filepath.IsAbs(path) || f.root == "" {
		return path
	}
	return filepath.Join(f.root, path)
}

// Exists reports whether path exists.
func (f *OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(f.resolve(path))
	return err == nil
}

// Read returns the contents of path.
func (f *OSFileSystem) Read(path string) ([]byte, error) {
	return os.ReadFile(f.resolve(path))
}

// Write replaces the contents of path, keeping its mode when it exists.
func (f *OSFileSystem) Write(path string, data []byte) error {
	full := f.resolve(path)
	mode := os.FileMode(0o644)
	if info, err := os.Stat(full); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, mode)
}

// Remove deletes path. A missing file is not an error.
func (f *OSFileSystem) Remove(path string) error {
	if err := os.Remove(f.resolve(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
