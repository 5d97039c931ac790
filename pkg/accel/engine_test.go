package accel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/muninn/pkg/storage"
)

// panicSource panics on the next node scan, then behaves normally.
type panicSource struct {
	Source
	panicNext bool
}

func (s *panicSource) AllNodes() ([]*storage.Node, error) {
	if s.panicNext {
		s.panicNext = false
		panic("index out of range [42] with length 3")
	}
	return s.Source.AllNodes()
}

func TestEngine_NotLoaded(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoReload = false
	engine := New(chainEngine(t), opts)
	ctx := context.Background()

	_, err := engine.NeighborsOf(ctx, "A")
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = engine.Neighborhood(ctx, "A", 2, DirectionBoth)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = engine.ShortestPath(ctx, "A", "D", 5)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = engine.Subgraph(ctx, "A", 2)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = engine.Degree(ctx, 10)
	assert.ErrorIs(t, err, ErrNotLoaded)

	assert.Equal(t, StatusNotLoaded, engine.Status().Status)
}

func TestEngine_Queries(t *testing.T) {
	engine := New(chainEngine(t), DefaultOptions())
	ctx := context.Background()
	require.NoError(t, engine.Load(ctx))

	t.Run("status", func(t *testing.T) {
		info := engine.Status()
		assert.Equal(t, StatusReady, info.Status)
		assert.Equal(t, 4, info.NodeCount)
	})

	t.Run("neighbors of", func(t *testing.T) {
		neighbors, err := engine.NeighborsOf(ctx, "B")
		require.NoError(t, err)
		require.Len(t, neighbors, 2)

		keys := []string{neighbors[0].Key, neighbors[1].Key}
		assert.ElementsMatch(t, []string{"A", "C"}, keys)
	})

	t.Run("neighbors of unresolved key", func(t *testing.T) {
		neighbors, err := engine.NeighborsOf(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, neighbors)
	})

	t.Run("neighborhood", func(t *testing.T) {
		hood, err := engine.Neighborhood(ctx, "A", 2, DirectionOutgoing)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, keysOf(hood))
	})

	t.Run("shortest path", func(t *testing.T) {
		path, err := engine.ShortestPath(ctx, "A", "D", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C", "D"}, pathKeys(path))
	})

	t.Run("subgraph", func(t *testing.T) {
		nodes, err := engine.Subgraph(ctx, "C", -1)
		require.NoError(t, err)
		assert.Len(t, nodes, 4)
	})

	t.Run("degree", func(t *testing.T) {
		entries, err := engine.Degree(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 2, entries[0].TotalDegree)
	})
}

func TestEngine_VisitCapSurfaces(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxVisitedNodes = 10
	engine := New(starEngine(t, 100), opts)
	ctx := context.Background()
	require.NoError(t, engine.Load(ctx))

	_, err := engine.Neighborhood(ctx, "H", 1, DirectionBoth)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// The snapshot is untouched; a cheaper query still works.
	neighbors, err := engine.NeighborsOf(ctx, "leaf-000")
	require.NoError(t, err)
	assert.Len(t, neighbors, 2)
}

func TestEngine_PanicBecomesInternalFault(t *testing.T) {
	src := &panicSource{Source: chainEngine(t), panicNext: true}
	engine := New(src, DefaultOptions())
	ctx := context.Background()

	err := engine.Load(ctx)
	assert.ErrorIs(t, err, ErrInternalFault)

	// The fault aborted only that call; the engine stays usable and a
	// subsequent load succeeds.
	require.NoError(t, engine.Load(ctx))
	path, err := engine.ShortestPath(ctx, "A", "D", 5)
	require.NoError(t, err)
	assert.Len(t, path, 4)
}

func TestEngine_AutoReloadOnQuery(t *testing.T) {
	source := chainEngine(t)
	opts := DefaultOptions()
	opts.ReloadMode = ReloadSync
	opts.ReloadDebounce = 0
	engine := New(source, opts)
	ctx := context.Background()
	require.NoError(t, engine.Load(ctx))

	addKeyedNode(t, source, "E", "Entity")
	addEdge(t, source, "e4", "D", "E", "NEXT")

	// Sync auto-reload refreshes before the query answers.
	hood, err := engine.Neighborhood(ctx, "A", -1, DirectionOutgoing)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, keysOf(hood))
}
