package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content []byte
	ModTime time.Time
}

// MockFilesystemManager is an in-memory filesystem for testing.
type MockFilesystemManager struct {
	files map[string]*MockFile
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.files[path] = &MockFile{
		Content: content,
		ModTime: time.Now(),
	}
}

// HasFile reports whether a file exists in the mock filesystem.
func (m *MockFilesystemManager) HasFile(path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.Content)),
		modTime: file.ModTime,
	}, nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystemManager) List(dir string) ([]string, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var out []string
	for path := range m.files {
		if strings.HasPrefix(path, prefix) && !strings.Contains(path[len(prefix):], "/") {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockFilesystemManager) DiskUsage(dir string) (int64, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var total int64
	for path, file := range m.files {
		if strings.HasPrefix(path, prefix) {
			total += int64(len(file.Content))
		}
	}
	return total, nil
}

type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (i *mockFileInfo) Name() string       { return i.name }
func (i *mockFileInfo) Size() int64        { return i.size }
func (i *mockFileInfo) Mode() fs.FileMode  { return 0644 }
func (i *mockFileInfo) ModTime() time.Time { return i.modTime }
func (i *mockFileInfo) IsDir() bool        { return false }
func (i *mockFileInfo) Sys() any           { return nil }
