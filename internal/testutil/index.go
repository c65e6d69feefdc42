package testutil

import (
	"testing"

	"mlib/internal/index"
	"mlib/internal/mlib"
)

// NewTestIndex creates a migrated in-memory index.
// The index is automatically closed when the test completes.
func NewTestIndex(t *testing.T) mlib.Index {
	t.Helper()

	idx, err := index.NewSQLiteIndex(":memory:")
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}

	t.Cleanup(func() {
		idx.Close()
	})

	return idx
}
