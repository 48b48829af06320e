package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"mediarc/internal/archive"
)

// FileSystemVault stores catalog snapshots as files under a root directory:
//
//	<root>/
//	  snapshots/
//	    <name>
type FileSystemVault struct {
	root        string
	snapshotDir string
}

// NewFileSystemVault creates a filesystem vault rooted at the given path.
func NewFileSystemVault(root string) (*FileSystemVault, error) {
	snapshotDir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSystemVault{root: root, snapshotDir: snapshotDir}, nil
}

// PutSnapshot stores a snapshot under the given name using an atomic write
// (temp file + rename).
func (v *FileSystemVault) PutSnapshot(name string, r io.Reader, size int64) error {
	destPath := filepath.Join(v.snapshotDir, name)

	tmpFile, err := os.CreateTemp(v.snapshotDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// GetSnapshot retrieves a snapshot by name and writes it to w.
func (v *FileSystemVault) GetSnapshot(name string, w io.Writer) error {
	f, err := os.Open(filepath.Join(v.snapshotDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot not found: %s", name)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns stored snapshot names in lexical order.
func (v *FileSystemVault) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(v.snapshotDir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Compile-time check that FileSystemVault implements archive.Vault
var _ archive.Vault = (*FileSystemVault)(nil)
