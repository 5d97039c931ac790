package storage

import "sync"

// MemoryEngine is a thread-safe in-memory implementation of Engine.
// It's useful for:
// - Unit testing (no disk I/O)
// - Loading exports into memory
// - Small datasets that fit in RAM
//
// Every committed mutation advances the epoch tracker while the write lock
// is still held, so an epoch read can never observe a half-applied change.
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups
	nodesByLabel  map[string]map[NodeID]struct{}
	outgoingEdges map[NodeID]map[EdgeID]struct{}
	incomingEdges map[NodeID]map[EdgeID]struct{}

	epoch  *EpochTracker
	closed bool
}

// NewMemoryEngine creates a new in-memory storage engine starting at epoch 0.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodesByLabel:  make(map[string]map[NodeID]struct{}),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
		incomingEdges: make(map[NodeID]map[EdgeID]struct{}),
		epoch:         NewEpochTracker(0),
	}
}

// CreateNode creates a new node.
func (m *MemoryEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return ErrAlreadyExists
	}

	m.nodes[node.ID] = copyNode(node)
	m.indexLabels(node)
	m.epoch.Increment()
	return nil
}

// GetNode retrieves a node by ID.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// UpdateNode replaces an existing node.
func (m *MemoryEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	existing, exists := m.nodes[node.ID]
	if !exists {
		return ErrNotFound
	}

	for _, label := range existing.Labels {
		if m.nodesByLabel[label] != nil {
			delete(m.nodesByLabel[label], node.ID)
		}
	}
	m.nodes[node.ID] = copyNode(node)
	m.indexLabels(node)
	m.epoch.Increment()
	return nil
}

// DeleteNode removes a node and all edges touching it.
func (m *MemoryEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	node, exists := m.nodes[id]
	if !exists {
		return ErrNotFound
	}

	for edgeID := range m.outgoingEdges[id] {
		m.removeEdgeLocked(edgeID)
	}
	for edgeID := range m.incomingEdges[id] {
		m.removeEdgeLocked(edgeID)
	}
	delete(m.outgoingEdges, id)
	delete(m.incomingEdges, id)

	for _, label := range node.Labels {
		if m.nodesByLabel[label] != nil {
			delete(m.nodesByLabel[label], id)
		}
	}
	delete(m.nodes, id)
	m.epoch.Increment()
	return nil
}

// CreateEdge creates a new edge. Both endpoints must exist.
func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" || edge.Source == "" || edge.Target == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.edges[edge.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := m.nodes[edge.Source]; !exists {
		return ErrNotFound
	}
	if _, exists := m.nodes[edge.Target]; !exists {
		return ErrNotFound
	}

	m.edges[edge.ID] = copyEdge(edge)
	if m.outgoingEdges[edge.Source] == nil {
		m.outgoingEdges[edge.Source] = make(map[EdgeID]struct{})
	}
	m.outgoingEdges[edge.Source][edge.ID] = struct{}{}
	if m.incomingEdges[edge.Target] == nil {
		m.incomingEdges[edge.Target] = make(map[EdgeID]struct{})
	}
	m.incomingEdges[edge.Target][edge.ID] = struct{}{}
	m.epoch.Increment()
	return nil
}

// GetEdge retrieves an edge by ID.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyEdge(edge), nil
}

// DeleteEdge removes an edge.
func (m *MemoryEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.edges[id]; !exists {
		return ErrNotFound
	}
	m.removeEdgeLocked(id)
	m.epoch.Increment()
	return nil
}

// GetNodesByLabel returns all nodes carrying the given label.
func (m *MemoryEngine) GetNodesByLabel(label string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.nodesByLabel[label]
	nodes := make([]*Node, 0, len(ids))
	for id := range ids {
		nodes = append(nodes, copyNode(m.nodes[id]))
	}
	return nodes, nil
}

// AllNodes returns every node in the store.
func (m *MemoryEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	nodes := make([]*Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		nodes = append(nodes, copyNode(node))
	}
	return nodes, nil
}

// AllEdges returns every edge in the store.
func (m *MemoryEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	edges := make([]*Edge, 0, len(m.edges))
	for _, edge := range m.edges {
		edges = append(edges, copyEdge(edge))
	}
	return edges, nil
}

// GetOutgoingEdges returns all edges whose source is nodeID.
func (m *MemoryEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	if nodeID == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.outgoingEdges[nodeID]
	edges := make([]*Edge, 0, len(ids))
	for id := range ids {
		edges = append(edges, copyEdge(m.edges[id]))
	}
	return edges, nil
}

// GetIncomingEdges returns all edges whose target is nodeID.
func (m *MemoryEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	if nodeID == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.incomingEdges[nodeID]
	edges := make([]*Edge, 0, len(ids))
	for id := range ids {
		edges = append(edges, copyEdge(m.edges[id]))
	}
	return edges, nil
}

// BulkCreateNodes creates many nodes in one lock acquisition.
// The whole batch commits as a single epoch advance; a failed entry aborts
// the batch with nothing applied.
func (m *MemoryEngine) BulkCreateNodes(nodes []*Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	for _, node := range nodes {
		if node == nil {
			return ErrInvalidData
		}
		if node.ID == "" {
			return ErrInvalidID
		}
		if _, exists := m.nodes[node.ID]; exists {
			return ErrAlreadyExists
		}
	}
	for _, node := range nodes {
		m.nodes[node.ID] = copyNode(node)
		m.indexLabels(node)
	}
	if len(nodes) > 0 {
		m.epoch.Increment()
	}
	return nil
}

// BulkCreateEdges creates many edges in one lock acquisition.
func (m *MemoryEngine) BulkCreateEdges(edges []*Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	for _, edge := range edges {
		if edge == nil {
			return ErrInvalidData
		}
		if edge.ID == "" || edge.Source == "" || edge.Target == "" {
			return ErrInvalidID
		}
		if _, exists := m.edges[edge.ID]; exists {
			return ErrAlreadyExists
		}
		if _, exists := m.nodes[edge.Source]; !exists {
			return ErrNotFound
		}
		if _, exists := m.nodes[edge.Target]; !exists {
			return ErrNotFound
		}
	}
	for _, edge := range edges {
		m.edges[edge.ID] = copyEdge(edge)
		if m.outgoingEdges[edge.Source] == nil {
			m.outgoingEdges[edge.Source] = make(map[EdgeID]struct{})
		}
		m.outgoingEdges[edge.Source][edge.ID] = struct{}{}
		if m.incomingEdges[edge.Target] == nil {
			m.incomingEdges[edge.Target] = make(map[EdgeID]struct{})
		}
		m.incomingEdges[edge.Target][edge.ID] = struct{}{}
	}
	if len(edges) > 0 {
		m.epoch.Increment()
	}
	return nil
}

// NodeCount returns the number of nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

// Epoch returns the current change epoch.
func (m *MemoryEngine) Epoch() uint64 {
	return m.epoch.Current()
}

// Close releases the engine. Subsequent operations return ErrStorageClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nodes = nil
	m.edges = nil
	m.nodesByLabel = nil
	m.outgoingEdges = nil
	m.incomingEdges = nil
	m.closed = true
	return nil
}

func (m *MemoryEngine) indexLabels(node *Node) {
	for _, label := range node.Labels {
		if m.nodesByLabel[label] == nil {
			m.nodesByLabel[label] = make(map[NodeID]struct{})
		}
		m.nodesByLabel[label][node.ID] = struct{}{}
	}
}

// removeEdgeLocked deletes an edge and its adjacency index entries.
// Caller holds the write lock.
func (m *MemoryEngine) removeEdgeLocked(id EdgeID) {
	edge, exists := m.edges[id]
	if !exists {
		return
	}
	if m.outgoingEdges[edge.Source] != nil {
		delete(m.outgoingEdges[edge.Source], id)
	}
	if m.incomingEdges[edge.Target] != nil {
		delete(m.incomingEdges[edge.Target], id)
	}
	delete(m.edges, id)
}

// Verify MemoryEngine implements Engine interface
var _ Engine = (*MemoryEngine)(nil)
