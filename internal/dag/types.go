package dag

import "sync"

// Graph is a collection of nodes and ordered edges.
// All operations on the graph are concurrency-safe.
type Graph[K comparable] struct {
	// mutex protects nodes and seq.
	mutex sync.RWMutex
	nodes map[K]*node[K]
	// seq numbers edges in the order they were added.
	seq uint64
}

// node represents a single vertex in the graph.
type node[K comparable] struct {
	id K
	// deps holds the predecessors of this node.
	deps map[K]*node[K]
	// dependents holds the outgoing edges, in insertion order.
	dependents []edge[K]
}

type edge[K comparable] struct {
	to  *node[K]
	seq uint64
}

// Edge is a directed edge as returned by Edges.
type Edge[K comparable] struct {
	From K
	To   K
}
