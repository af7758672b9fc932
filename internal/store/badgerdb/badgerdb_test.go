package badgerdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsmodels/internal/store"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)
	doc := s.Collection("books").Doc("b1")

	snap, err := doc.Get(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	_, err = doc.Update(ctx, map[string]any{"title": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = doc.Set(ctx, map[string]any{"title": "Dune", "pages": 412})
	require.NoError(t, err)
	_, err = doc.Update(ctx, map[string]any{"pages": 500, "isbn": "42"})
	require.NoError(t, err)

	snap, err = doc.Get(ctx)
	require.NoError(t, err)
	// JSON: числа возвращаются как float64
	assert.Equal(t, map[string]any{"title": "Dune", "pages": 500.0, "isbn": "42"}, snap.Data)

	_, err = doc.Set(ctx, map[string]any{"title": "Only"})
	require.NoError(t, err)
	snap, _ = doc.Get(ctx)
	assert.Equal(t, map[string]any{"title": "Only"}, snap.Data)

	_, err = doc.Delete(ctx)
	require.NoError(t, err)
	snap, _ = doc.Get(ctx)
	assert.False(t, snap.Exists())
}

func TestCollectionsAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)
	_, err := s.Collection("a").Doc("1").Set(ctx, map[string]any{"v": "a"})
	require.NoError(t, err)

	snap, err := s.Collection("b").Doc("1").Get(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestNewDocIDs(t *testing.T) {
	c := openMem(t).Collection("c")
	a, b := c.NewDoc(), c.NewDoc()
	assert.Len(t, a.ID(), 26)
	assert.Less(t, a.ID(), b.ID())
}

func TestPersistentReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	_, err = s.Collection("c").Doc("1").Set(ctx, map[string]any{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.Collection("c").Doc("1").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", snap.Data["k"])
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := openMem(t).Collection("c").Doc("1").Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
