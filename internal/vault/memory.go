package vault

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"mediarc/internal/archive"
)

// MemoryVault is an in-memory implementation of archive.Vault, useful for
// testing. Safe for concurrent use.
type MemoryVault struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{snapshots: make(map[string][]byte)}
}

// PutSnapshot stores a snapshot under the given name.
func (m *MemoryVault) PutSnapshot(name string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[name] = data
	return nil
}

// GetSnapshot retrieves a snapshot by name and writes it to w.
func (m *MemoryVault) GetSnapshot(name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.snapshots[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("snapshot not found: %s", name)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns stored snapshot names in lexical order.
func (m *MemoryVault) ListSnapshots() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.snapshots))
	for name := range m.snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Compile-time check that MemoryVault implements archive.Vault
var _ archive.Vault = (*MemoryVault)(nil)
