package accel

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/muninn/pkg/storage"
)

// addKeyedNode seeds a node whose "key" property doubles as its storage ID.
func addKeyedNode(t *testing.T, engine *storage.MemoryEngine, key, label string) {
	t.Helper()
	require.NoError(t, engine.CreateNode(&storage.Node{
		ID:         storage.NodeID(key),
		Labels:     []string{label},
		Properties: map[string]any{"key": key},
	}))
}

func addEdge(t *testing.T, engine *storage.MemoryEngine, id, source, target, relType string) {
	t.Helper()
	require.NoError(t, engine.CreateEdge(&storage.Edge{
		ID:     storage.EdgeID(id),
		Source: storage.NodeID(source),
		Target: storage.NodeID(target),
		Type:   relType,
	}))
}

// chainEngine builds the directed chain A -> B -> C -> D.
func chainEngine(t *testing.T) *storage.MemoryEngine {
	t.Helper()
	engine := storage.NewMemoryEngine()
	for _, key := range []string{"A", "B", "C", "D"} {
		addKeyedNode(t, engine, key, "Entity")
	}
	addEdge(t, engine, "e1", "A", "B", "NEXT")
	addEdge(t, engine, "e2", "B", "C", "NEXT")
	addEdge(t, engine, "e3", "C", "D", "NEXT")
	return engine
}

// trianglesEngine builds two disjoint directed triangles {A,B,C} and {D,E,F}.
func trianglesEngine(t *testing.T) *storage.MemoryEngine {
	t.Helper()
	engine := storage.NewMemoryEngine()
	for _, key := range []string{"A", "B", "C", "D", "E", "F"} {
		addKeyedNode(t, engine, key, "Entity")
	}
	addEdge(t, engine, "e1", "A", "B", "LINK")
	addEdge(t, engine, "e2", "B", "C", "LINK")
	addEdge(t, engine, "e3", "C", "A", "LINK")
	addEdge(t, engine, "e4", "D", "E", "LINK")
	addEdge(t, engine, "e5", "E", "F", "LINK")
	addEdge(t, engine, "e6", "F", "D", "LINK")
	return engine
}

// starEngine builds a hub H bidirectionally connected to n leaves.
func starEngine(t *testing.T, n int) *storage.MemoryEngine {
	t.Helper()
	engine := storage.NewMemoryEngine()
	addKeyedNode(t, engine, "H", "Hub")
	for i := 0; i < n; i++ {
		leaf := fmt.Sprintf("leaf-%03d", i)
		addKeyedNode(t, engine, leaf, "Leaf")
		addEdge(t, engine, fmt.Sprintf("out-%03d", i), "H", leaf, "SPOKE")
		addEdge(t, engine, fmt.Sprintf("in-%03d", i), leaf, "H", "SPOKE")
	}
	return engine
}

// loadSnapshot builds a snapshot over the engine with default test options.
func loadSnapshot(t *testing.T, source Source) *Snapshot {
	t.Helper()
	opts := DefaultOptions()
	snap, err := NewLoader(source, opts).Load(context.Background())
	require.NoError(t, err)
	return snap
}

// keysOf projects neighborhood entries to their external keys.
func keysOf(entries []NeighborhoodEntry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// pathKeys projects a path to its node keys.
func pathKeys(path []PathEntry) []string {
	keys := make([]string, len(path))
	for i, e := range path {
		keys[i] = e.Key
	}
	return keys
}
