// Package dag holds the directed graph of property bindings.
//
// Nodes are keyed by any comparable ID. Unlike a plain adjacency map, the
// graph remembers the order in which edges were added: Dependents returns a
// node's successors in insertion order, which is the order changes propagate
// in. Cycles are legal; DetectCycles reports them without rejecting them.
package dag
