// Package transform provides the graph walks the lane optimizers are built
// on: topological ordering and longest-path levelization.
//
// # Topological Order
//
// [TopoSort] runs an iterative depth-first search with an explicit stack, so
// graph depth is bounded by heap memory rather than goroutine stack size.
// Nodes are emitted in reverse finishing order: every node precedes all of
// its successors. Ties between independent nodes follow insertion order but
// callers must not rely on a particular tie-break.
//
// # Levelization
//
// [Levelize] assigns each node its longest-path distance, in edges, from any
// source node:
//
//	level(n) = 0                                  if n has no predecessors
//	level(n) = 1 + max(level(p) for p in preds(n)) otherwise
//
// The walk relaxes levels in Kahn order, so a node is only resolved after
// every predecessor. This guarantees that every predecessor of a node in
// bucket i lies in a bucket with index < i, the property the round-robin
// optimizer relies on to never wait on a fence before it is recorded.
//
// A breadth-first walk that fixes a node's level on its first visit computes
// only a lower bound. With nodes {B, A, C} and edges A→B→C, starting from B
// places B and A both at level 0. Levelize never does this.
//
// # Read-only
//
// Both walks keep their visitation state in local maps. The graph is never
// mutated, so walks over one graph may run concurrently.
package transform
