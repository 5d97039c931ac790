package accel

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/orneryd/muninn/pkg/storage"
)

// Source is the read-only slice of the transactional store the loader
// consumes. storage.Engine satisfies it; the loader never writes.
type Source interface {
	Epoch() uint64
	AllNodes() ([]*storage.Node, error)
	AllEdges() ([]*storage.Edge, error)
	GetNodesByLabel(label string) ([]*storage.Node, error)
}

// Loader builds complete snapshots from the source-of-truth store.
//
// A load records the source epoch first, then issues a bounded number of
// read queries (one per filtered label, or one full scan, plus one edge
// scan) and assembles the snapshot entirely in scratch memory. If the epoch
// advances mid-build the loader does not retry; it returns the snapshot
// consistent as of the recorded epoch and lets the next staleness check
// trigger a follow-up load. This bounds reload cost under sustained writes.
type Loader struct {
	source Source
	opts   Options
}

// NewLoader creates a loader over the given source.
func NewLoader(source Source, opts Options) *Loader {
	return &Loader{source: source, opts: opts}
}

// checkEvery is how many items a load processes between context checks.
const checkEvery = 4096

// Load builds a new snapshot. On any failure the scratch build is abandoned
// and an error wrapping ErrLoadFailed (or ErrCapacityExceeded for a blown
// memory cap) is returned; nothing already published is touched.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	epochAtStart := l.source.Epoch()

	nodes, err := l.fetchNodes()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch nodes: %v", ErrLoadFailed, err)
	}
	edges, err := l.source.AllEdges()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch edges: %v", ErrLoadFailed, err)
	}

	// Stable ordering makes internal ID assignment and adjacency iteration
	// deterministic for a given source state.
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	builder := newSnapshotBuilder(l.opts.MaxMemoryBytes)
	internalID := make(map[storage.NodeID]int32, len(nodes))

	for i, node := range nodes {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
			}
		}
		key := l.externalKey(node)
		if key != "" {
			if _, taken := builder.keyToID[key]; taken {
				log.Printf("accel: duplicate external key %q on node %s, node addressable by traversal only", key, node.ID)
				key = ""
			}
		}
		id, err := builder.addNode(key, primaryLabel(node))
		if err != nil {
			return nil, err
		}
		internalID[node.ID] = id
	}

	edgeTypes := toSet(l.opts.EdgeTypes)
	for i, edge := range edges {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
			}
		}
		if edgeTypes != nil {
			if _, ok := edgeTypes[edge.Type]; !ok {
				continue
			}
		}
		source, ok := internalID[edge.Source]
		if !ok {
			continue
		}
		target, ok := internalID[edge.Target]
		if !ok {
			continue
		}
		if err := builder.addEdge(source, target, edge.Type); err != nil {
			return nil, err
		}
	}

	return builder.build(epochAtStart), nil
}

// fetchNodes pulls the filtered node set: one query per configured label,
// or a single full scan for the wildcard filter. Nodes matching several
// filter labels are deduplicated.
func (l *Loader) fetchNodes() ([]*storage.Node, error) {
	if len(l.opts.NodeLabels) == 0 {
		return l.source.AllNodes()
	}

	seen := make(map[storage.NodeID]struct{})
	var nodes []*storage.Node
	for _, label := range l.opts.NodeLabels {
		labeled, err := l.source.GetNodesByLabel(label)
		if err != nil {
			return nil, err
		}
		for _, node := range labeled {
			if _, dup := seen[node.ID]; dup {
				continue
			}
			seen[node.ID] = struct{}{}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// externalKey extracts the configured key property as a string.
// Missing or non-string values mean the node has no external key.
func (l *Loader) externalKey(node *storage.Node) string {
	if l.opts.KeyProperty == "" || node.Properties == nil {
		return ""
	}
	key, _ := node.Properties[l.opts.KeyProperty].(string)
	return key
}

// primaryLabel reports the node's first label. Labels are opaque strings;
// the snapshot carries one per node for query results.
func primaryLabel(node *storage.Node) string {
	if len(node.Labels) == 0 {
		return ""
	}
	return node.Labels[0]
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
