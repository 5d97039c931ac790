// Package storage provides the transactional source-of-truth graph store
// for Muninn.
//
// Two Engine implementations are provided:
//   - MemoryEngine: thread-safe in-memory storage for testing and small datasets
//   - BadgerEngine: persistent disk-based storage with ACID transactions
//
// Every mutating operation advances the store's epoch counter as part of the
// same logical commit, so downstream read-side caches (pkg/accel) can detect
// staleness without timestamps. Observing epoch N implies every commit up to
// and including N is visible.
package storage

import "errors"

// NodeID uniquely identifies a node in the graph.
type NodeID string

// EdgeID uniquely identifies an edge in the graph.
type EdgeID string

// Node represents a graph node with labels and arbitrary properties.
//
// Labels and property names are opaque strings; the store imposes no schema.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	ID         EdgeID         `json:"id"`
	Source     NodeID         `json:"source"`
	Target     NodeID         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Errors returned by storage engines.
var (
	ErrNotFound      = errors.New("storage: not found")
	ErrInvalidID     = errors.New("storage: invalid ID")
	ErrInvalidData   = errors.New("storage: invalid data")
	ErrAlreadyExists = errors.New("storage: already exists")
	ErrStorageClosed = errors.New("storage: engine closed")
)

// Engine is the storage interface implemented by all backends.
//
// All methods are safe for concurrent use. Implementations must deep-copy
// nodes and edges on both write and read so callers can never mutate stored
// state through a returned pointer.
type Engine interface {
	// Node operations
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	UpdateNode(node *Node) error
	DeleteNode(id NodeID) error

	// Edge operations
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	DeleteEdge(id EdgeID) error

	// Query operations
	GetNodesByLabel(label string) ([]*Node, error)
	AllNodes() ([]*Node, error)
	AllEdges() ([]*Edge, error)
	GetOutgoingEdges(nodeID NodeID) ([]*Edge, error)
	GetIncomingEdges(nodeID NodeID) ([]*Edge, error)

	// Bulk operations
	BulkCreateNodes(nodes []*Node) error
	BulkCreateEdges(edges []*Edge) error

	// Stats
	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	// Epoch returns the current change epoch. It advances by at least one
	// for every committed mutation and never goes backward.
	Epoch() uint64

	Close() error
}

func copyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := &Node{ID: n.ID}
	if n.Labels != nil {
		c.Labels = make([]string, len(n.Labels))
		copy(c.Labels, n.Labels)
	}
	if n.Properties != nil {
		c.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

func copyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	c := &Edge{ID: e.ID, Source: e.Source, Target: e.Target, Type: e.Type}
	if e.Properties != nil {
		c.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = v
		}
	}
	return c
}
