package testutil

import (
	"path/filepath"
	"testing"

	"mlib/internal/mlib"
	"mlib/internal/store"
)

// NewTestStore creates a content store in a fresh temp directory.
func NewTestStore(t *testing.T) mlib.ContentStore {
	t.Helper()

	s := store.NewFileSystemStore(filepath.Join(t.TempDir(), "medias"))
	if err := s.Init(); err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

// MemorySummary is a SummaryStore that keeps the summary in memory.
// FailNext makes the next update fail without applying it.
type MemorySummary struct {
	Current  mlib.Summary
	FailNext error
}

func (m *MemorySummary) Summary() mlib.Summary {
	return m.Current
}

func (m *MemorySummary) UpdateSummary(fn func(*mlib.Summary)) error {
	if err := m.FailNext; err != nil {
		m.FailNext = nil
		return err
	}
	fn(&m.Current)
	return nil
}
