package testutil

import (
	"testing"

	"mediarc/internal/archive"
	"mediarc/internal/storage"
)

// TestStore bundles a Store backed by an in-memory database with its stubbed
// collaborators so tests can script inputs and inspect side effects.
type TestStore struct {
	Store     *archive.Store
	Extractor *StubExtractor
	Thumbs    *StubThumbnailer
	FS        *MockFilesystemManager
	Clock     *StubClock
}

// NewTestStore creates a catalog store on an in-memory SQLite database with
// stub collaborators. The store is closed when the test completes.
func NewTestStore(t *testing.T) *TestStore {
	t.Helper()

	db, err := storage.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	extractor := NewStubExtractor()
	thumbs := NewStubThumbnailer()
	fsm := NewMockFilesystemManager()
	clock := FixedClock()

	store, err := archive.NewStore(db, extractor, thumbs, fsm, archive.NewNopLogger(), clock)
	if err != nil {
		db.Close()
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return &TestStore{
		Store:     store,
		Extractor: extractor,
		Thumbs:    thumbs,
		FS:        fsm,
		Clock:     clock,
	}
}
