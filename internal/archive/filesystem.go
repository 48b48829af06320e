package archive

import (
	"io"
	"io/fs"
)

// FilesystemManager abstracts file access so the catalog, hashing, and
// duplicate verification can run against an in-memory filesystem in tests.
type FilesystemManager interface {
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// Remove deletes a file.
	Remove(path string) error

	// List returns the full paths of regular files directly under dir.
	List(dir string) ([]string, error)

	// DiskUsage returns the total size in bytes of regular files under dir.
	DiskUsage(dir string) (int64, error)
}
