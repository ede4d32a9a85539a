package dag_test

import (
	"fmt"

	"github.com/matzehuels/lanecap/pkg/dag"
)

func ExampleDAG_basic() {
	// upload → gemm → download
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "upload"})
	_ = g.AddNode(dag.Node{ID: "gemm"})
	_ = g.AddNode(dag.Node{ID: "download"})
	_ = g.AddEdge(dag.Edge{From: "upload", To: "gemm"})
	_ = g.AddEdge(dag.Edge{From: "gemm", To: "download"})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	fmt.Println("Valid:", g.Validate() == nil)
	// Output:
	// Nodes: 3
	// Edges: 2
	// Valid: true
}

func ExampleDAG_traversal() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "load"})
	_ = g.AddNode(dag.Node{ID: "conv"})
	_ = g.AddNode(dag.Node{ID: "pool"})
	_ = g.AddEdge(dag.Edge{From: "load", To: "conv"})
	_ = g.AddEdge(dag.Edge{From: "load", To: "pool"})

	fmt.Println("Successors of load:", g.Successors("load"))
	fmt.Println("Predecessors of conv:", g.Predecessors("conv"))
	fmt.Println("Sources:", dag.NodeIDs(g.Sources()))
	fmt.Println("Sinks:", dag.NodeIDs(g.Sinks()))
	// Output:
	// Successors of load: [conv pool]
	// Predecessors of conv: [load]
	// Sources: [load]
	// Sinks: [conv pool]
}
