// BadgerEngine provides persistent disk-based storage using BadgerDB.
// It implements the Engine interface with ACID transaction support.

package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixNode          = byte(0x01) // node:nodeID -> JSON(Node)
	prefixEdge          = byte(0x02) // edge:edgeID -> JSON(Edge)
	prefixLabelIndex    = byte(0x03) // label + 0x00 + nodeID -> empty
	prefixOutgoingIndex = byte(0x04) // nodeID + 0x00 + edgeID -> empty
	prefixIncomingIndex = byte(0x05) // nodeID + 0x00 + edgeID -> empty
	prefixMeta          = byte(0x06) // meta key -> value
)

var metaEpochKey = []byte{prefixMeta, 'e', 'p', 'o', 'c', 'h'}

// BadgerEngine provides persistent storage using BadgerDB.
//
// The change epoch is persisted under a meta key inside the same transaction
// as every mutation, so a crash can never leave the counter behind the data.
// An in-memory EpochTracker mirrors the persisted value for lock-free reads.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db    *badger.DB
	epoch *EpochTracker

	// Serializes mutating transactions so the persisted epoch and the
	// in-memory mirror advance together.
	writeMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// NewBadgerEngine opens (or creates) a Badger-backed store at dir.
func NewBadgerEngine(dir string) (*BadgerEngine, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return openBadger(opts)
}

// NewInMemoryBadgerEngine opens a Badger engine with no disk backing.
// Used by tests that want Badger semantics without filesystem I/O.
func NewInMemoryBadgerEngine() (*BadgerEngine, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerEngine, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	// Recover the persisted epoch, if any.
	var epoch uint64
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaEpochKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				epoch = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read epoch: %w", err)
	}

	return &BadgerEngine{db: db, epoch: NewEpochTracker(epoch)}, nil
}

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, id...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, id...)
}

func labelIndexKey(label string, id NodeID) []byte {
	k := append([]byte{prefixLabelIndex}, label...)
	k = append(k, 0x00)
	return append(k, id...)
}

func adjacencyKey(prefix byte, nodeID NodeID, edgeID EdgeID) []byte {
	k := append([]byte{prefix}, nodeID...)
	k = append(k, 0x00)
	return append(k, edgeID...)
}

// update runs fn in a mutating transaction and persists the advanced epoch
// in the same transaction. The in-memory mirror advances only on commit.
func (b *BadgerEngine) update(fn func(txn *badger.Txn) error) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	next := b.epoch.Current() + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)

	err := b.db.Update(func(txn *badger.Txn) error {
		if err := fn(txn); err != nil {
			return err
		}
		return txn.Set(metaEpochKey, buf[:])
	})
	if err != nil {
		return err
	}
	b.epoch.Increment()
	return nil
}

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// CreateNode creates a new node.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nodeKey(node.ID)); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return writeNode(txn, node)
	})
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = readNode(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// UpdateNode replaces an existing node.
func (b *BadgerEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.update(func(txn *badger.Txn) error {
		existing, err := readNode(txn, node.ID)
		if err != nil {
			return err
		}
		for _, label := range existing.Labels {
			if err := txn.Delete(labelIndexKey(label, node.ID)); err != nil {
				return err
			}
		}
		return writeNode(txn, node)
	})
}

// DeleteNode removes a node and all edges touching it.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.update(func(txn *badger.Txn) error {
		node, err := readNode(txn, id)
		if err != nil {
			return err
		}

		// Collect and delete connected edges first.
		edgeIDs, err := adjacentEdgeIDs(txn, id)
		if err != nil {
			return err
		}
		for _, edgeID := range edgeIDs {
			if err := deleteEdgeInTxn(txn, edgeID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		for _, label := range node.Labels {
			if err := txn.Delete(labelIndexKey(label, id)); err != nil {
				return err
			}
		}
		return txn.Delete(nodeKey(id))
	})
}

// CreateEdge creates a new edge. Both endpoints must exist.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" || edge.Source == "" || edge.Target == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(edgeKey(edge.ID)); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if _, err := txn.Get(nodeKey(edge.Source)); err != nil {
			return notFoundOr(err)
		}
		if _, err := txn.Get(nodeKey(edge.Target)); err != nil {
			return notFoundOr(err)
		}
		return writeEdge(txn, edge)
	})
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		edge, err = readEdge(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// DeleteEdge removes an edge.
func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.update(func(txn *badger.Txn) error {
		return deleteEdgeInTxn(txn, id)
	})
}

// GetNodesByLabel returns all nodes carrying the given label.
func (b *BadgerEngine) GetNodesByLabel(label string) ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	prefix := append([]byte{prefixLabelIndex}, label...)
	prefix = append(prefix, 0x00)

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			id := NodeID(it.Item().Key()[len(prefix):])
			node, err := readNode(txn, id)
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// AllNodes returns every node in the store.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte{prefixNode}})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var node Node
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &node)
			})
			if err != nil {
				return err
			}
			nodes = append(nodes, &node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// AllEdges returns every edge in the store.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte{prefixEdge}})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var edge Edge
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			})
			if err != nil {
				return err
			}
			edges = append(edges, &edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// GetOutgoingEdges returns all edges whose source is nodeID.
func (b *BadgerEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.edgesByAdjacency(prefixOutgoingIndex, nodeID)
}

// GetIncomingEdges returns all edges whose target is nodeID.
func (b *BadgerEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.edgesByAdjacency(prefixIncomingIndex, nodeID)
}

func (b *BadgerEngine) edgesByAdjacency(prefix byte, nodeID NodeID) ([]*Edge, error) {
	if nodeID == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	keyPrefix := append([]byte{prefix}, nodeID...)
	keyPrefix = append(keyPrefix, 0x00)

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: keyPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			edgeID := EdgeID(it.Item().Key()[len(keyPrefix):])
			edge, err := readEdge(txn, edgeID)
			if err != nil {
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// BulkCreateNodes creates many nodes. The whole batch commits as one
// transaction and one epoch advance.
func (b *BadgerEngine) BulkCreateNodes(nodes []*Node) error {
	if len(nodes) == 0 {
		return nil
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.update(func(txn *badger.Txn) error {
		for _, node := range nodes {
			if node == nil {
				return ErrInvalidData
			}
			if node.ID == "" {
				return ErrInvalidID
			}
			if _, err := txn.Get(nodeKey(node.ID)); err == nil {
				return ErrAlreadyExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := writeNode(txn, node); err != nil {
				return err
			}
		}
		return nil
	})
}

// BulkCreateEdges creates many edges in one transaction.
func (b *BadgerEngine) BulkCreateEdges(edges []*Edge) error {
	if len(edges) == 0 {
		return nil
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.update(func(txn *badger.Txn) error {
		for _, edge := range edges {
			if edge == nil {
				return ErrInvalidData
			}
			if edge.ID == "" || edge.Source == "" || edge.Target == "" {
				return ErrInvalidID
			}
			if _, err := txn.Get(nodeKey(edge.Source)); err != nil {
				return notFoundOr(err)
			}
			if _, err := txn.Get(nodeKey(edge.Target)); err != nil {
				return notFoundOr(err)
			}
			if err := writeEdge(txn, edge); err != nil {
				return err
			}
		}
		return nil
	})
}

// NodeCount returns the number of nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	return b.countPrefix(prefixNode)
}

// EdgeCount returns the number of edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	return b.countPrefix(prefixEdge)
}

func (b *BadgerEngine) countPrefix(prefix byte) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         []byte{prefix},
			PrefetchValues: false,
		})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Epoch returns the current change epoch.
func (b *BadgerEngine) Epoch() uint64 {
	return b.epoch.Current()
}

// Close flushes and closes the underlying Badger database.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func writeNode(txn *badger.Txn, node *Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	if err := txn.Set(nodeKey(node.ID), data); err != nil {
		return err
	}
	for _, label := range node.Labels {
		if err := txn.Set(labelIndexKey(label, node.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func writeEdge(txn *badger.Txn, edge *Edge) error {
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("marshal edge: %w", err)
	}
	if err := txn.Set(edgeKey(edge.ID), data); err != nil {
		return err
	}
	if err := txn.Set(adjacencyKey(prefixOutgoingIndex, edge.Source, edge.ID), nil); err != nil {
		return err
	}
	return txn.Set(adjacencyKey(prefixIncomingIndex, edge.Target, edge.ID), nil)
}

func readNode(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	var node Node
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func readEdge(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	var edge Edge
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &edge)
	})
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func deleteEdgeInTxn(txn *badger.Txn, id EdgeID) error {
	edge, err := readEdge(txn, id)
	if err != nil {
		return err
	}
	if err := txn.Delete(adjacencyKey(prefixOutgoingIndex, edge.Source, id)); err != nil {
		return err
	}
	if err := txn.Delete(adjacencyKey(prefixIncomingIndex, edge.Target, id)); err != nil {
		return err
	}
	return txn.Delete(edgeKey(id))
}

// adjacentEdgeIDs returns the IDs of all edges touching nodeID, deduplicated
// (a self-loop appears in both indexes).
func adjacentEdgeIDs(txn *badger.Txn, nodeID NodeID) ([]EdgeID, error) {
	seen := make(map[EdgeID]struct{})
	var ids []EdgeID
	for _, prefix := range []byte{prefixOutgoingIndex, prefixIncomingIndex} {
		keyPrefix := append([]byte{prefix}, nodeID...)
		keyPrefix = append(keyPrefix, 0x00)
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         keyPrefix,
			PrefetchValues: false,
		})
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if !bytes.HasPrefix(key, keyPrefix) {
				break
			}
			id := EdgeID(key[len(keyPrefix):])
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		it.Close()
	}
	return ids, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

// Verify BadgerEngine implements Engine interface
var _ Engine = (*BadgerEngine)(nil)
