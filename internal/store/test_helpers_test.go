package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedStore creates a pool with supply Coins and one profile per user id.
func seedStore(t *testing.T, s *Store, supply int64, users ...string) {
	t.Helper()
	ctx := context.Background()
	if err := s.EnsurePool(ctx, supply); err != nil {
		t.Fatalf("EnsurePool() failed: %v", err)
	}
	for _, u := range users {
		if err := s.EnsureProfile(ctx, u, u); err != nil {
			t.Fatalf("EnsureProfile(%q) failed: %v", u, err)
		}
	}
}
