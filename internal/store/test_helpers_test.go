package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/replay"
)

// createTestStore opens a store in a per-test temp directory.
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

// createTestSession writes a header plus n entries with times 1..n.
func createTestSession(t *testing.T, s *Store, n int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	require.NoError(t, s.WriteSession(ctx, id, "test", replay.FormatVersion, n))
	for i := 0; i < n; i++ {
		require.NoError(t, s.WriteEntry(ctx, id, createTestEntry(i)))
	}
	return id
}

func createTestEntry(seq int) replay.ArchivedEntry {
	return replay.ArchivedEntry{
		Seq:     seq,
		Time:    int64(seq + 1),
		Kind:    "Double",
		Payload: []byte{byte(seq)},
	}
}
