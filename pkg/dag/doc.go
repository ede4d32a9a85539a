// Package dag provides the task dependency graph consumed by the lane
// optimizers.
//
// # Overview
//
// A [DAG] holds [Node] values connected by dependency [Edge] values. An edge
// From → To means To may only start after From has completed. Each node
// carries a [WorkFunc] that enqueues its GPU operation on a lane handed to it
// by an optimizer; the graph itself never talks to a device.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "upload", Work: upload})
//	g.AddNode(dag.Node{ID: "gemm", Work: gemm})
//	g.AddEdge(dag.Edge{From: "upload", To: "gemm"})
//
// Use [DAG.Validate] to verify the graph is acyclic before scheduling it.
//
// # Node Kinds
//
// Only [NodeKindCapture] nodes can be captured onto lanes. [NodeKindHost]
// nodes exist so graph descriptions can mention host-side tasks; the
// optimizers reject graphs that contain them.
//
// # Determinism
//
// Nodes are kept in insertion order and adjacency lists in edge order. All
// traversals in this package and in [transform] follow those orders, so the
// same graph always produces the same schedule.
//
// # Concurrency
//
// A DAG is not safe for concurrent mutation. Once built, any number of
// goroutines may read it, and the optimizers keep their per-run state outside
// the graph, so concurrent optimizer runs over one DAG are safe.
//
// [transform]: github.com/matzehuels/lanecap/pkg/dag/transform
package dag
