package muninn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/muninn/pkg/accel"
	"github.com/orneryd/muninn/pkg/config"
	"github.com/orneryd/muninn/pkg/storage"
)

// newTestDB opens an in-memory DB with auto-reload off so staleness
// transitions are observable.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Accel.AutoReload = false
	db, err := OpenMemory(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedChain(t *testing.T, db *DB, keys ...string) {
	t.Helper()
	ctx := context.Background()
	for _, key := range keys {
		require.NoError(t, db.PutNode(ctx, &storage.Node{
			ID:         storage.NodeID(key),
			Labels:     []string{"Entity"},
			Properties: map[string]any{"key": key},
		}))
	}
	for i := 0; i+1 < len(keys); i++ {
		_, err := db.CreateEdge(ctx, storage.NodeID(keys[i]), storage.NodeID(keys[i+1]), "NEXT", nil)
		require.NoError(t, err)
	}
}

func TestDB_WriteRefreshQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Preload published an empty snapshot; it is Ready until the first write.
	assert.Equal(t, accel.StatusReady, db.Status().Status)

	seedChain(t, db, "A", "B", "C", "D")
	assert.Equal(t, accel.StatusStale, db.Status().Status)

	require.NoError(t, db.Refresh(ctx))
	info := db.Status()
	assert.Equal(t, accel.StatusReady, info.Status)
	assert.Equal(t, 4, info.NodeCount)
	assert.Equal(t, 3, info.EdgeCount)

	t.Run("neighbors", func(t *testing.T) {
		neighbors, err := db.NeighborsOf(ctx, "B")
		require.NoError(t, err)
		assert.Len(t, neighbors, 2)
	})

	t.Run("neighborhood", func(t *testing.T) {
		hood, err := db.Neighborhood(ctx, "A", 2, accel.DirectionOutgoing)
		require.NoError(t, err)
		require.Len(t, hood, 3)
		assert.Equal(t, "C", hood[2].Key)
		assert.Equal(t, 2, hood[2].Distance)
	})

	t.Run("shortest path", func(t *testing.T) {
		path, err := db.ShortestPath(ctx, "A", "D", 5)
		require.NoError(t, err)
		require.Len(t, path, 4)
		assert.Equal(t, "NEXT", path[1].Relation)
	})

	t.Run("subgraph", func(t *testing.T) {
		nodes, err := db.Subgraph(ctx, "B", -1)
		require.NoError(t, err)
		assert.Len(t, nodes, 4)
	})

	t.Run("degree", func(t *testing.T) {
		entries, err := db.Degree(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 2, entries[0].TotalDegree)
	})
}

func TestDB_CreateNodeGeneratesID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	node, err := db.CreateNode(ctx, []string{"Person"}, map[string]any{"key": "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, node.ID)

	stored, err := db.Store().GetNode(node.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Properties["key"])
}

func TestDB_DeletesAdvanceEpoch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedChain(t, db, "A", "B")
	require.NoError(t, db.Refresh(ctx))

	edges, err := db.Store().GetOutgoingEdges("A")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.NoError(t, db.DeleteEdge(ctx, edges[0].ID))
	assert.Equal(t, accel.StatusStale, db.Status().Status)

	require.NoError(t, db.DeleteNode(ctx, "B"))
	require.NoError(t, db.Refresh(ctx))

	info := db.Status()
	assert.Equal(t, 1, info.NodeCount)
	assert.Equal(t, 0, info.EdgeCount)
}

func TestDB_AutoReloadServesFreshData(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Accel.ReloadMode = "sync"
	cfg.Accel.ReloadDebounce = 0
	db, err := OpenMemory(cfg)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	seedChain(t, db, "A", "B", "C")

	// No explicit Refresh: the first query detects staleness and reloads.
	hood, err := db.Neighborhood(ctx, "A", -1, accel.DirectionOutgoing)
	require.NoError(t, err)
	assert.Len(t, hood, 3)
}

func TestDB_Closed(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Close())
	// Close is idempotent.
	require.NoError(t, db.Close())

	ctx := context.Background()
	_, err := db.CreateNode(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.NeighborsOf(ctx, "A")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Refresh(ctx), ErrClosed)
}

func TestDB_OpenValidatesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Engine = "cloud"
	_, err := Open(cfg)
	assert.ErrorContains(t, err, "invalid storage engine")
}
