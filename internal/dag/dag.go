package dag

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Edge errors.
var (
	ErrSelfEdge   = errors.New("self-referential edge not allowed")
	ErrEdgeExists = errors.New("edge already exists")
	ErrNoEdge     = errors.New("edge not found")
)

// New creates and returns an initialized, empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]*node[K]),
	}
}

func (g *Graph[K]) addNodeLocked(id K) *node[K] {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &node[K]{id: id, deps: make(map[K]*node[K])}
	g.nodes[id] = n
	return n
}

// AddEdge creates a directed edge from fromID to toID, adding missing nodes.
// It fails on self-references and on edges that already exist.
func (g *Graph[K]) AddEdge(fromID, toID K) error {
	if fromID == toID {
		return fmt.Errorf("%w: %v -> %v", ErrSelfEdge, fromID, toID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode := g.addNodeLocked(fromID)
	toNode := g.addNodeLocked(toID)

	if _, ok := toNode.deps[fromID]; ok {
		return fmt.Errorf("%w: %v -> %v", ErrEdgeExists, fromID, toID)
	}

	g.seq++
	toNode.deps[fromID] = fromNode
	fromNode.dependents = append(fromNode.dependents, edge[K]{to: toNode, seq: g.seq})
	return nil
}

// RemoveEdge deletes the edge from fromID to toID. Nodes left without edges
// are dropped.
func (g *Graph[K]) RemoveEdge(fromID, toID K) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("%w: %v -> %v", ErrNoEdge, fromID, toID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("%w: %v -> %v", ErrNoEdge, fromID, toID)
	}
	if _, ok := toNode.deps[fromID]; !ok {
		return fmt.Errorf("%w: %v -> %v", ErrNoEdge, fromID, toID)
	}

	delete(toNode.deps, fromID)
	fromNode.dependents = slices.DeleteFunc(fromNode.dependents, func(e edge[K]) bool { return e.to == toNode })
	g.pruneLocked(fromNode)
	g.pruneLocked(toNode)
	return nil
}

// RemoveNodes deletes every node matching pred together with all its edges,
// and returns the removed edges in insertion order.
func (g *Graph[K]) RemoveNodes(pred func(K) bool) []Edge[K] {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	removed := g.edgesLocked(func(from, to K) bool { return pred(from) || pred(to) })
	for _, e := range removed {
		fromNode, toNode := g.nodes[e.From], g.nodes[e.To]
		delete(toNode.deps, e.From)
		fromNode.dependents = slices.DeleteFunc(fromNode.dependents, func(x edge[K]) bool { return x.to == toNode })
	}
	for id, n := range g.nodes {
		if pred(id) || (len(n.deps) == 0 && len(n.dependents) == 0) {
			delete(g.nodes, id)
		}
	}
	return removed
}

func (g *Graph[K]) pruneLocked(n *node[K]) {
	if len(n.deps) == 0 && len(n.dependents) == 0 {
		delete(g.nodes, n.id)
	}
}

// Dependents returns the IDs that id has edges to, in insertion order.
func (g *Graph[K]) Dependents(id K) []K {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	out := make([]K, len(n.dependents))
	for i, e := range n.dependents {
		out[i] = e.to.id
	}
	return out
}

// Edges returns every edge for which keep returns true, in insertion order.
// A nil keep returns all edges.
func (g *Graph[K]) Edges(keep func(from, to K) bool) []Edge[K] {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.edgesLocked(keep)
}

// Len returns the number of edges.
func (g *Graph[K]) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n := 0
	for _, nd := range g.nodes {
		n += len(nd.dependents)
	}
	return n
}

func (g *Graph[K]) edgesLocked(keep func(from, to K) bool) []Edge[K] {
	type seqEdge struct {
		Edge[K]
		seq uint64
	}
	var all []seqEdge
	for _, n := range g.nodes {
		for _, e := range n.dependents {
			if keep == nil || keep(n.id, e.to.id) {
				all = append(all, seqEdge{Edge: Edge[K]{From: n.id, To: e.to.id}, seq: e.seq})
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	out := make([]Edge[K], len(all))
	for i, e := range all {
		out[i] = e.Edge
	}
	return out
}

// DetectCycles checks the graph for cycles. It returns the IDs along the
// first cycle found, starting and ending at the same node, or nil when the
// graph is acyclic. Traversal follows edge insertion order, so the result is
// deterministic.
func (g *Graph[K]) DetectCycles() []K {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// permanent: fully visited and not part of a cycle.
	// stack: the current recursion path.
	permanent := make(map[K]bool)
	onStack := make(map[K]bool)
	var stack []K

	var visit func(n *node[K]) []K
	visit = func(n *node[K]) []K {
		if permanent[n.id] {
			return nil
		}
		if onStack[n.id] {
			start := slices.Index(stack, n.id)
			return append(slices.Clone(stack[start:]), n.id)
		}

		onStack[n.id] = true
		stack = append(stack, n.id)

		for _, e := range n.dependents {
			if cycle := visit(e.to); cycle != nil {
				return cycle
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, e := range g.edgesLocked(nil) {
		if cycle := visit(g.nodes[e.From]); cycle != nil {
			return cycle
		}
	}
	return nil
}
