// Package accel provides Muninn's in-memory graph acceleration engine:
// a read-only, atomically-swappable adjacency index mirroring a filtered
// slice of the transactional store.
//
// Multi-hop traversals (neighborhoods, shortest paths, subgraphs, degree
// ranking) run against one immutable Snapshot in time proportional to the
// graph actually touched. The source-of-truth store stays authoritative;
// staleness is detected through its change epoch and resolved by rebuilding
// a complete replacement snapshot off to the side.
//
// Example:
//
//	engine := accel.New(store, accel.DefaultOptions())
//	if err := engine.Load(ctx); err != nil {
//		log.Fatal(err)
//	}
//	hood, err := engine.Neighborhood(ctx, "alice", 2, accel.DirectionOutgoing)
package accel

import "fmt"

// Direction selects which adjacency list a traversal follows.
type Direction int

const (
	// DirectionOutgoing follows edges from source to target.
	DirectionOutgoing Direction = iota
	// DirectionIncoming follows edges from target to source.
	DirectionIncoming
	// DirectionBoth follows edges either way.
	DirectionBoth
)

// ParseDirection converts a string ("out", "in", "both") to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "out", "outgoing":
		return DirectionOutgoing, nil
	case "in", "incoming":
		return DirectionIncoming, nil
	case "both", "":
		return DirectionBoth, nil
	}
	return DirectionBoth, fmt.Errorf("invalid direction %q", s)
}

// halfEdge is one adjacency entry: the peer's internal ID and the interned
// relation type. 8 bytes per entry; an edge is stored once in the source's
// outgoing list and once in the target's incoming list.
type halfEdge struct {
	peer int32
	rel  int32
}

// Snapshot is the immutable adjacency store.
//
// Internal IDs are dense int32 indexes assigned during one load and are
// never stable across snapshots. No method mutates the snapshot after
// construction, so any number of callers may query it concurrently without
// locking. The only way to get a different answer is to query a newer
// snapshot.
type Snapshot struct {
	loadedEpoch uint64

	// Per-node data, indexed by internal ID.
	keys   []string // external key, "" if the node has none
	labels []int32  // index into labelNames, -1 if unlabeled
	out    [][]halfEdge
	in     [][]halfEdge

	// Interned strings. Relation types and labels repeat heavily, so
	// adjacency entries store indexes instead of strings.
	labelNames []string
	relNames   []string

	keyToID map[string]int32

	edgeCount   int
	memoryBytes int64
}

// LoadedEpoch returns the source epoch observed when this snapshot's load
// began.
func (s *Snapshot) LoadedEpoch() uint64 { return s.loadedEpoch }

// NodeCount returns the number of nodes in the snapshot.
func (s *Snapshot) NodeCount() int { return len(s.keys) }

// EdgeCount returns the number of edges in the snapshot.
func (s *Snapshot) EdgeCount() int { return s.edgeCount }

// MemoryBytes returns the approximate heap footprint of the snapshot.
func (s *Snapshot) MemoryBytes() int64 { return s.memoryBytes }

// InternalIDForKey resolves an external key to an internal node ID.
// Absence is a normal result, not an error.
func (s *Snapshot) InternalIDForKey(key string) (int32, bool) {
	id, ok := s.keyToID[key]
	return id, ok
}

// KeyOf returns the external key of a node, or "" if it has none.
func (s *Snapshot) KeyOf(id int32) string { return s.keys[id] }

// LabelOf returns the label of a node, or "" if it has none.
func (s *Snapshot) LabelOf(id int32) string {
	if s.labels[id] < 0 {
		return ""
	}
	return s.labelNames[s.labels[id]]
}

// Neighbor is one adjacency entry with the relation type resolved.
type Neighbor struct {
	ID       int32
	Key      string
	Label    string
	Relation string
}

// Neighbors returns the adjacency of a node in the given direction.
// O(degree). For DirectionBoth, outgoing entries precede incoming ones.
func (s *Snapshot) Neighbors(id int32, direction Direction) []Neighbor {
	if id < 0 || int(id) >= len(s.keys) {
		return nil
	}
	var result []Neighbor
	if direction == DirectionOutgoing || direction == DirectionBoth {
		for _, he := range s.out[id] {
			result = append(result, s.neighbor(he))
		}
	}
	if direction == DirectionIncoming || direction == DirectionBoth {
		for _, he := range s.in[id] {
			result = append(result, s.neighbor(he))
		}
	}
	return result
}

func (s *Snapshot) neighbor(he halfEdge) Neighbor {
	return Neighbor{
		ID:       he.peer,
		Key:      s.keys[he.peer],
		Label:    s.LabelOf(he.peer),
		Relation: s.relNames[he.rel],
	}
}

// snapshotBuilder accumulates nodes and edges in scratch memory, then
// freezes them into a Snapshot. The builder is single-threaded and never
// escapes the loader; only a fully built Snapshot is ever published.
type snapshotBuilder struct {
	keys      []string
	labels    []int32
	out       [][]halfEdge
	in        [][]halfEdge
	keyToID   map[string]int32
	edgeCount int

	labelNames  []string
	labelIndex  map[string]int32
	relNames    []string
	relIndex    map[string]int32
	memoryBytes int64
	maxMemory   int64 // 0 = unlimited
}

func newSnapshotBuilder(maxMemory int64) *snapshotBuilder {
	return &snapshotBuilder{
		keyToID:    make(map[string]int32),
		labelIndex: make(map[string]int32),
		relIndex:   make(map[string]int32),
		maxMemory:  maxMemory,
	}
}

// addNode registers a node and returns its internal ID.
// A key already claimed by an earlier node is rejected: the external-key
// index maps each key to at most one node.
func (b *snapshotBuilder) addNode(key, label string) (int32, error) {
	if key != "" {
		if _, exists := b.keyToID[key]; exists {
			return 0, fmt.Errorf("duplicate external key %q", key)
		}
	}

	id := int32(len(b.keys))
	b.keys = append(b.keys, key)
	b.labels = append(b.labels, b.internLabel(label))
	b.out = append(b.out, nil)
	b.in = append(b.in, nil)
	if key != "" {
		b.keyToID[key] = id
	}

	// Approximate: key string + label slot + two slice headers + map entry.
	b.memoryBytes += int64(len(key)) + 4 + 48
	if key != "" {
		b.memoryBytes += int64(len(key)) + 16
	}
	return id, b.checkMemory()
}

// addEdge records a directed edge in both adjacency lists.
func (b *snapshotBuilder) addEdge(source, target int32, relType string) error {
	rel := b.internRel(relType)
	b.out[source] = append(b.out[source], halfEdge{peer: target, rel: rel})
	b.in[target] = append(b.in[target], halfEdge{peer: source, rel: rel})
	b.edgeCount++
	b.memoryBytes += 16 // two halfEdge entries
	return b.checkMemory()
}

func (b *snapshotBuilder) internLabel(label string) int32 {
	if label == "" {
		return -1
	}
	if idx, ok := b.labelIndex[label]; ok {
		return idx
	}
	idx := int32(len(b.labelNames))
	b.labelNames = append(b.labelNames, label)
	b.labelIndex[label] = idx
	b.memoryBytes += int64(len(label)) + 16
	return idx
}

func (b *snapshotBuilder) internRel(relType string) int32 {
	if idx, ok := b.relIndex[relType]; ok {
		return idx
	}
	idx := int32(len(b.relNames))
	b.relNames = append(b.relNames, relType)
	b.relIndex[relType] = idx
	b.memoryBytes += int64(len(relType)) + 16
	return idx
}

func (b *snapshotBuilder) checkMemory() error {
	if b.maxMemory > 0 && b.memoryBytes > b.maxMemory {
		return fmt.Errorf("%w: snapshot build exceeds memory cap (%d > %d bytes)",
			ErrCapacityExceeded, b.memoryBytes, b.maxMemory)
	}
	return nil
}

// build freezes the accumulated state into an immutable Snapshot tagged
// with the epoch observed at the start of the load.
func (b *snapshotBuilder) build(loadedEpoch uint64) *Snapshot {
	return &Snapshot{
		loadedEpoch: loadedEpoch,
		keys:        b.keys,
		labels:      b.labels,
		out:         b.out,
		in:          b.in,
		labelNames:  b.labelNames,
		relNames:    b.relNames,
		keyToID:     b.keyToID,
		edgeCount:   b.edgeCount,
		memoryBytes: b.memoryBytes,
	}
}
