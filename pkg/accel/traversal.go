package accel

import "sort"

// Traversal results. All traversals operate against one pinned snapshot for
// their whole duration; a concurrent reload never changes an in-flight
// answer.

// NeighborhoodEntry is one node reached by a breadth-first expansion.
type NeighborhoodEntry struct {
	Key      string   `json:"key"`
	Label    string   `json:"label,omitempty"`
	Distance int      `json:"distance"`
	// PathTypes lists the relation types along the discovery path from the
	// start node, in hop order.
	PathTypes []string `json:"path_types,omitempty"`
}

// PathEntry is one node on a shortest path. Relation is the type of the
// edge entering this node from the previous entry; empty for the first.
type PathEntry struct {
	Key      string `json:"key"`
	Label    string `json:"label,omitempty"`
	Relation string `json:"relation,omitempty"`
}

// SubgraphNode is one node of an extracted component. ComponentID is scoped
// to the extracting call only.
type SubgraphNode struct {
	Key         string `json:"key"`
	Label       string `json:"label,omitempty"`
	ComponentID int    `json:"component_id"`
}

// DegreeEntry is one row of a degree ranking.
type DegreeEntry struct {
	Key         string `json:"key"`
	Label       string `json:"label,omitempty"`
	InDegree    int    `json:"in_degree"`
	OutDegree   int    `json:"out_degree"`
	TotalDegree int    `json:"total_degree"`
}

type parentRec struct {
	parent int32
	rel    int32
}

// Neighborhood runs a breadth-first expansion from the node with the given
// external key, one distance level at a time, reporting each reachable node
// exactly once at its minimum distance. maxDepth < 0 means expand until the
// frontier empties. An unresolved start key yields an empty result, not an
// error. visitCap bounds the number of visited nodes (0 = unlimited);
// exceeding it aborts with ErrCapacityExceeded.
func (s *Snapshot) Neighborhood(startKey string, maxDepth int, direction Direction, visitCap int) ([]NeighborhoodEntry, error) {
	start, ok := s.InternalIDForKey(startKey)
	if !ok {
		return []NeighborhoodEntry{}, nil
	}

	visited := make([]bool, len(s.keys))
	parents := make(map[int32]parentRec, 64)
	visited[start] = true
	visitCount := 1

	result := []NeighborhoodEntry{{
		Key:      s.keys[start],
		Label:    s.LabelOf(start),
		Distance: 0,
	}}

	frontier := []int32{start}
	for depth := 0; len(frontier) > 0 && (maxDepth < 0 || depth < maxDepth); depth++ {
		var next []int32
		for _, u := range frontier {
			for _, he := range s.adjacency(u, direction) {
				if visited[he.peer] {
					continue
				}
				visited[he.peer] = true
				visitCount++
				if visitCap > 0 && visitCount > visitCap {
					return nil, capExceeded("neighborhood", visitCap)
				}
				parents[he.peer] = parentRec{parent: u, rel: he.rel}
				result = append(result, NeighborhoodEntry{
					Key:       s.keys[he.peer],
					Label:     s.LabelOf(he.peer),
					Distance:  depth + 1,
					PathTypes: s.pathTypes(start, he.peer, parents),
				})
				next = append(next, he.peer)
			}
		}
		frontier = next
	}
	return result, nil
}

// pathTypes reconstructs the relation-type chain from start to node via the
// BFS parent pointers, in hop order.
func (s *Snapshot) pathTypes(start, node int32, parents map[int32]parentRec) []string {
	var types []string
	for node != start {
		rec := parents[node]
		types = append(types, s.relNames[rec.rel])
		node = rec.parent
	}
	// Collected leaf-to-root; reverse in place.
	for i, j := 0, len(types)-1; i < j; i, j = i+1, j-1 {
		types[i], types[j] = types[j], types[i]
	}
	return types
}

// ShortestPath finds a minimum-hop directed path between two keyed nodes
// using bidirectional BFS: the smaller frontier expands first, and the
// search stops once no shorter meeting can exist. Returns (nil, nil) when
// either key is unresolved or no path exists within maxHops. maxHops < 0
// means unbounded. When several shortest paths exist, which one is returned
// depends on adjacency iteration order within this snapshot only.
func (s *Snapshot) ShortestPath(fromKey, toKey string, maxHops int, visitCap int) ([]PathEntry, error) {
	from, ok := s.InternalIDForKey(fromKey)
	if !ok {
		return nil, nil
	}
	to, ok := s.InternalIDForKey(toKey)
	if !ok {
		return nil, nil
	}
	if from == to {
		return []PathEntry{{Key: s.keys[from], Label: s.LabelOf(from)}}, nil
	}

	// parentF grows forward along outgoing edges, parentB backward along
	// incoming edges. A node present in both maps is a meeting point.
	parentF := map[int32]parentRec{from: {parent: -1, rel: -1}}
	parentB := map[int32]parentRec{to: {parent: -1, rel: -1}}
	frontierF := []int32{from}
	frontierB := []int32{to}
	depthF, depthB := 0, 0
	visitCount := 2

	best := -1
	var bestNode int32

	for len(frontierF) > 0 && len(frontierB) > 0 {
		if best >= 0 && depthF+depthB >= best {
			break
		}
		if maxHops >= 0 && depthF+depthB >= maxHops {
			break
		}

		forward := len(frontierF) <= len(frontierB)
		var frontier []int32
		if forward {
			frontier = frontierF
		} else {
			frontier = frontierB
		}

		var next []int32
		for _, u := range frontier {
			var edges []halfEdge
			if forward {
				edges = s.out[u]
			} else {
				edges = s.in[u]
			}
			for _, he := range edges {
				mine, other := parentF, parentB
				if !forward {
					mine, other = parentB, parentF
				}
				if _, seen := mine[he.peer]; seen {
					continue
				}
				mine[he.peer] = parentRec{parent: u, rel: he.rel}
				visitCount++
				if visitCap > 0 && visitCount > visitCap {
					return nil, capExceeded("shortest_path", visitCap)
				}
				if _, met := other[he.peer]; met {
					total := s.meetTotal(he.peer, parentF, parentB)
					if best < 0 || total < best {
						best = total
						bestNode = he.peer
					}
				}
				next = append(next, he.peer)
			}
		}
		if forward {
			frontierF = next
			depthF++
		} else {
			frontierB = next
			depthB++
		}
	}

	if best < 0 || (maxHops >= 0 && best > maxHops) {
		return nil, nil
	}
	return s.stitchPath(from, bestNode, parentF, parentB), nil
}

// meetTotal is the length in hops of the path through the meeting node.
func (s *Snapshot) meetTotal(node int32, parentF, parentB map[int32]parentRec) int {
	return chainLen(node, parentF) + chainLen(node, parentB)
}

func chainLen(node int32, parents map[int32]parentRec) int {
	n := 0
	for {
		rec := parents[node]
		if rec.parent < 0 {
			return n
		}
		n++
		node = rec.parent
	}
}

// stitchPath joins the forward chain (from -> meet) with the backward chain
// (meet -> to) into one ordered path.
func (s *Snapshot) stitchPath(from, meet int32, parentF, parentB map[int32]parentRec) []PathEntry {
	// Forward half, reconstructed leaf-to-root then reversed.
	var reversed []PathEntry
	node := meet
	for node != from {
		rec := parentF[node]
		reversed = append(reversed, PathEntry{
			Key:      s.keys[node],
			Label:    s.LabelOf(node),
			Relation: s.relNames[rec.rel],
		})
		node = rec.parent
	}
	path := []PathEntry{{Key: s.keys[from], Label: s.LabelOf(from)}}
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}

	// Backward half follows parentB pointers toward the target; each hop's
	// relation is the type of the edge entering the next node's direction
	// of travel, already oriented source->target.
	node = meet
	for {
		rec := parentB[node]
		if rec.parent < 0 {
			break
		}
		path = append(path, PathEntry{
			Key:      s.keys[rec.parent],
			Label:    s.LabelOf(rec.parent),
			Relation: s.relNames[rec.rel],
		})
		node = rec.parent
	}
	return path
}

// Subgraph extracts the connected component around the keyed node,
// restricted to nodes reachable within maxDepth hops following edges in
// either direction. The component ID is scoped to this call.
func (s *Snapshot) Subgraph(startKey string, maxDepth int, visitCap int) ([]SubgraphNode, error) {
	const componentID = 1

	start, ok := s.InternalIDForKey(startKey)
	if !ok {
		return []SubgraphNode{}, nil
	}

	visited := make([]bool, len(s.keys))
	visited[start] = true
	visitCount := 1

	result := []SubgraphNode{{
		Key:         s.keys[start],
		Label:       s.LabelOf(start),
		ComponentID: componentID,
	}}

	frontier := []int32{start}
	for depth := 0; len(frontier) > 0 && (maxDepth < 0 || depth < maxDepth); depth++ {
		var next []int32
		for _, u := range frontier {
			for _, he := range s.adjacency(u, DirectionBoth) {
				if visited[he.peer] {
					continue
				}
				visited[he.peer] = true
				visitCount++
				if visitCap > 0 && visitCount > visitCap {
					return nil, capExceeded("subgraph", visitCap)
				}
				result = append(result, SubgraphNode{
					Key:         s.keys[he.peer],
					Label:       s.LabelOf(he.peer),
					ComponentID: componentID,
				})
				next = append(next, he.peer)
			}
		}
		frontier = next
	}
	return result, nil
}

// Degree ranks nodes by total degree, descending, ties broken by external
// key ascending. topN <= 0 returns all nodes. A full O(nodes) scan over
// adjacency list lengths; no edges are walked.
func (s *Snapshot) Degree(topN int) []DegreeEntry {
	entries := make([]DegreeEntry, 0, len(s.keys))
	for id := range s.keys {
		in := len(s.in[id])
		out := len(s.out[id])
		entries = append(entries, DegreeEntry{
			Key:         s.keys[id],
			Label:       s.LabelOf(int32(id)),
			InDegree:    in,
			OutDegree:   out,
			TotalDegree: in + out,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalDegree != entries[j].TotalDegree {
			return entries[i].TotalDegree > entries[j].TotalDegree
		}
		return entries[i].Key < entries[j].Key
	})
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}

// adjacency returns the edges to follow from u for a direction. For
// DirectionBoth the two lists are concatenated, outgoing first.
func (s *Snapshot) adjacency(u int32, direction Direction) []halfEdge {
	switch direction {
	case DirectionOutgoing:
		return s.out[u]
	case DirectionIncoming:
		return s.in[u]
	default:
		if len(s.in[u]) == 0 {
			return s.out[u]
		}
		if len(s.out[u]) == 0 {
			return s.in[u]
		}
		both := make([]halfEdge, 0, len(s.out[u])+len(s.in[u]))
		both = append(both, s.out[u]...)
		both = append(both, s.in[u]...)
		return both
	}
}
