// Package hnsw provides the implementation of the Hierarchical Navigable Small World
// graph algorithm for efficient approximate nearest neighbor search.
//
// This file defines the Node struct, the vertex of the layered graph.
package hnsw

// Node represents a single vector inside the index together with its links
// on every layer it participates in.
type Node struct {
	// InternalID is the insertion position of the vector. The graph builder
	// relies on it matching the entity index.
	InternalID uint32
	// VectorF32 stores float32 vectors. Treated as immutable once inserted.
	VectorF32 []float32
	// VectorF16 stores float16 vectors as raw bits. Treated as immutable once inserted.
	VectorF16 []uint16

	// Connections[l] holds the neighbors of the node at layer l.
	Connections [][]uint32
}

// level returns the highest layer the node is linked on.
func (n *Node) level() int {
	return len(n.Connections) - 1
}
