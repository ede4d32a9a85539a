package transform

import (
	"slices"

	"github.com/matzehuels/lanecap/pkg/dag"
)

// TopoSort returns every node of g in a topological order: for each edge
// From → To, From appears before To.
//
// TopoSort assumes g is acyclic. On a cyclic graph the result still contains
// every node exactly once, but the order is meaningless; call
// [dag.DAG.Validate] first when the input is untrusted.
//
// Time complexity is O(V + E). A node may be pushed once per incoming edge,
// so the stack holds at most V + E entries.
func TopoSort(g *dag.DAG) []*dag.Node {
	nodes := g.Nodes()
	visited := make(map[string]bool, len(nodes))
	done := make(map[string]bool, len(nodes))
	order := make([]*dag.Node, 0, len(nodes))
	stack := make([]string, 0, len(nodes))

	for _, root := range nodes {
		if visited[root.ID] {
			continue
		}
		stack = append(stack, root.ID)

		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if visited[id] {
				// Second pop: every successor has finished.
				if !done[id] {
					done[id] = true
					n, _ := g.Node(id)
					order = append(order, n)
				}
				continue
			}

			visited[id] = true
			stack = append(stack, id)
			for _, s := range g.Successors(id) {
				if !visited[s] {
					stack = append(stack, s)
				}
			}
		}
	}

	slices.Reverse(order)
	return order
}
