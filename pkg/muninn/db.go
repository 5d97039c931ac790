// Package muninn provides the main API for embedded Muninn usage.
//
// Muninn is a knowledge-graph engine: a transactional source-of-truth graph
// store (Badger-backed or in-memory) paired with a read-only in-memory
// acceleration index (pkg/accel) that answers multi-hop traversal queries
// against an immutable snapshot of the graph.
//
// Writes go through the store and advance its change epoch; reads go
// through the acceleration engine, which detects staleness via the epoch
// and rebuilds its snapshot according to the configured reload policy.
//
// Example Usage:
//
//	cfg := config.DefaultConfig()
//	cfg.Storage.DataDir = "./data"
//	cfg.Accel.KeyProperty = "name"
//
//	db, err := muninn.Open(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	alice, _ := db.CreateNode(ctx, []string{"Person"}, map[string]any{"name": "alice"})
//	bob, _ := db.CreateNode(ctx, []string{"Person"}, map[string]any{"name": "bob"})
//	db.CreateEdge(ctx, alice.ID, bob.ID, "KNOWS", nil)
//
//	if err := db.Refresh(ctx); err != nil {
//		log.Fatal(err)
//	}
//	hood, _ := db.Neighborhood(ctx, "alice", 2, accel.DirectionOutgoing)
package muninn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/orneryd/muninn/pkg/accel"
	"github.com/orneryd/muninn/pkg/config"
	"github.com/orneryd/muninn/pkg/storage"
)

// ErrClosed is returned by operations on a closed DB.
var ErrClosed = errors.New("muninn: database closed")

// DB is an embedded Muninn instance.
type DB struct {
	store storage.Engine
	accel *accel.Engine
	cfg   *config.Config

	mu     sync.RWMutex
	closed bool
}

// Open creates a DB from configuration: the configured storage engine plus
// an acceleration engine over it. With preload enabled, the first snapshot
// is built before Open returns; a preload failure leaves the engine Empty
// and is logged, since the store itself opened fine and the host may retry.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store storage.Engine
	var err error
	switch cfg.Storage.Engine {
	case "memory":
		store = storage.NewMemoryEngine()
	default:
		store, err = storage.NewBadgerEngine(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("muninn: open storage: %w", err)
		}
	}

	db := &DB{
		store: store,
		accel: accel.New(store, cfg.Accel.Options()),
		cfg:   cfg,
	}

	if cfg.Accel.Preload {
		if err := db.accel.Load(context.Background()); err != nil {
			log.Printf("muninn: preload failed, engine starts empty: %v", err)
		}
	}
	return db, nil
}

// OpenMemory creates an in-memory DB with the given accel settings.
// Intended for tests and ephemeral workloads.
func OpenMemory(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Storage.Engine = "memory"
	return Open(cfg)
}

// Store returns the underlying storage engine.
func (db *DB) Store() storage.Engine {
	return db.store
}

// Close releases the acceleration snapshot and the storage engine.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.store.Close()
}

func (db *DB) checkOpen() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}

// ---- Write path (source of truth) ----

// CreateNode stores a new node. A generated UUID is assigned when id
// generation is left to the store. The store's epoch advances, so the
// acceleration snapshot becomes stale until the next reload.
func (db *DB) CreateNode(ctx context.Context, labels []string, properties map[string]any) (*storage.Node, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	node := &storage.Node{
		ID:         storage.NodeID(uuid.NewString()),
		Labels:     labels,
		Properties: properties,
	}
	if err := db.store.CreateNode(node); err != nil {
		return nil, err
	}
	return node, nil
}

// PutNode stores a node with a caller-chosen ID.
func (db *DB) PutNode(ctx context.Context, node *storage.Node) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.store.CreateNode(node)
}

// CreateEdge stores a new directed relationship between two nodes.
func (db *DB) CreateEdge(ctx context.Context, source, target storage.NodeID, relType string, properties map[string]any) (*storage.Edge, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	edge := &storage.Edge{
		ID:         storage.EdgeID(uuid.NewString()),
		Source:     source,
		Target:     target,
		Type:       relType,
		Properties: properties,
	}
	if err := db.store.CreateEdge(edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// DeleteNode removes a node and its edges from the store.
func (db *DB) DeleteNode(ctx context.Context, id storage.NodeID) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.store.DeleteNode(id)
}

// DeleteEdge removes an edge from the store.
func (db *DB) DeleteEdge(ctx context.Context, id storage.EdgeID) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.store.DeleteEdge(id)
}

// ---- Read path (acceleration engine) ----

// Refresh builds and publishes a fresh acceleration snapshot.
func (db *DB) Refresh(ctx context.Context) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.accel.Load(ctx)
}

// Status reports the acceleration engine's snapshot state.
func (db *DB) Status() accel.StatusInfo {
	return db.accel.Status()
}

// NeighborsOf returns the direct neighbors of the keyed node.
func (db *DB) NeighborsOf(ctx context.Context, key string) ([]accel.Neighbor, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.accel.NeighborsOf(ctx, key)
}

// Neighborhood runs a depth-bounded BFS from the keyed node.
func (db *DB) Neighborhood(ctx context.Context, key string, maxDepth int, direction accel.Direction) ([]accel.NeighborhoodEntry, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.accel.Neighborhood(ctx, key, maxDepth, direction)
}

// ShortestPath finds a minimum-hop path between two keyed nodes.
func (db *DB) ShortestPath(ctx context.Context, fromKey, toKey string, maxHops int) ([]accel.PathEntry, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.accel.ShortestPath(ctx, fromKey, toKey, maxHops)
}

// Subgraph extracts the component around the keyed node within maxDepth.
func (db *DB) Subgraph(ctx context.Context, key string, maxDepth int) ([]accel.SubgraphNode, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.accel.Subgraph(ctx, key, maxDepth)
}

// Degree returns the topN nodes ranked by total degree.
func (db *DB) Degree(ctx context.Context, topN int) ([]accel.DegreeEntry, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.accel.Degree(ctx, topN)
}
