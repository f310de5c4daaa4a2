package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestSQLiteUpsertAndFindByName(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	entry := Entry{
		ID:          "c-1",
		Name:        "Acme Robotics",
		Website:     "https://acme.example",
		Description: "Industrial robots",
		Vector:      []float32{1, 0, 0},
	}
	require.NoError(t, s.Upsert(ctx, entry))

	got, err := s.FindByName(ctx, "ACME robotics")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry, *got)

	missing, err := s.FindByName(ctx, "Nonexistent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteUpsertReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Entry{ID: "c-1", Name: "Acme", Vector: []float32{1, 0}}))
	require.NoError(t, s.Upsert(ctx, Entry{ID: "c-1", Name: "Acme Inc", Vector: []float32{0, 1}}))

	got, err := s.FindByName(ctx, "Acme Inc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []float32{0, 1}, got.Vector)

	old, err := s.FindByName(ctx, "Acme")
	require.NoError(t, err)
	assert.Nil(t, old, "old name should be gone after replace")
}

func TestSQLiteKNearest(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	entries := []Entry{
		{ID: "a", Name: "A", Vector: []float32{1, 0}},
		{ID: "b", Name: "B", Vector: []float32{0.9, 0.1}},
		{ID: "c", Name: "C", Vector: []float32{0, 1}},
		{ID: "d", Name: "D", Vector: []float32{-1, 0}},
	}
	for _, e := range entries {
		require.NoError(t, s.Upsert(ctx, e))
	}

	hits, err := s.KNearest(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	all, err := s.KNearest(ctx, []float32{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "d", all[3].ID, "opposite vector ranks last")
	assert.InDelta(t, 0.0, all[3].Score, 1e-9)
}

func TestSQLiteKNearestEmpty(t *testing.T) {
	s := newTestSQLite(t)
	hits, err := s.KNearest(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
