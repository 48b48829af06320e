package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"mediarc/internal/archive"
)

// OSFilesystemManager is the real filesystem implementation of
// archive.FilesystemManager, operating through the os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a filesystem manager over the real
// filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Stat returns file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Remove deletes a file.
func (m *OSFilesystemManager) Remove(path string) error {
	return os.Remove(path)
}

// List returns the full paths of regular files directly under dir.
func (m *OSFilesystemManager) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

// DiskUsage sums the sizes of regular files under dir, recursively.
func (m *OSFilesystemManager) DiskUsage(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking %s: %w", dir, err)
	}
	return total, nil
}

// Compile-time check that OSFilesystemManager implements the interface
var _ archive.FilesystemManager = (*OSFilesystemManager)(nil)
