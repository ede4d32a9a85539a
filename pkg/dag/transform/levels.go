package transform

import (
	"github.com/matzehuels/lanecap/pkg/dag"
)

// Levels is a level partition of a graph: Buckets[i] holds every node whose
// longest-path level is i, in graph insertion order.
//
// Every bucket holds at least one node, and levels are contiguous from 0 to
// MaxLevel. Levels is immutable after Levelize returns.
type Levels struct {
	Buckets [][]*dag.Node

	level map[string]int
	index map[string]int
}

// Len returns the number of buckets.
func (l *Levels) Len() int { return len(l.Buckets) }

// MaxLevel returns the highest level, or -1 for an empty graph.
func (l *Levels) MaxLevel() int { return len(l.Buckets) - 1 }

// Level returns the level of the node with the given ID.
func (l *Levels) Level(id string) (int, bool) {
	v, ok := l.level[id]
	return v, ok
}

// Index returns the position of the node within its level's bucket.
func (l *Levels) Index(id string) (int, bool) {
	v, ok := l.index[id]
	return v, ok
}

// Levelize partitions g into levels by longest-path distance from the
// source nodes.
//
// Levelize uses a longest-path algorithm via topological sort (Kahn's
// algorithm). Each node is placed at one plus the maximum level of any of
// its predecessors, ensuring that:
//   - Source nodes (no incoming edges) are at level 0
//   - All predecessors are in strictly lower levels
//   - Each node is pushed as deep as necessary to avoid conflicts
//
// # Algorithm
//
//  1. Seed the queue with every source node (in-degree 0) at level 0
//  2. Pop a node; relax each successor to max(level, current + 1)
//  3. Decrement the successor's in-degree; enqueue it when it reaches zero
//  4. Bucket every node by level, in graph insertion order
//
// A successor is only dequeued after all of its predecessors, so its level
// is final when it is relaxed onward.
//
// # Cycles
//
// Nodes on a cycle never reach in-degree zero. Levelize detects this and
// returns [dag.ErrGraphHasCycle] instead of a partial partition.
//
// # Performance
//
// Time complexity is O(V + E). Space complexity is O(V).
func Levelize(g *dag.DAG) (*Levels, error) {
	nodes := g.Nodes()
	inDegree := make(map[string]int, len(nodes))
	level := make(map[string]int, len(nodes))
	queue := make([]string, 0, len(nodes))

	for _, n := range nodes {
		degree := g.InDegree(n.ID)
		inDegree[n.ID] = degree
		if degree == 0 {
			queue = append(queue, n.ID)
			level[n.ID] = 0
		}
	}

	resolved := 0
	maxLevel := -1
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		resolved++
		maxLevel = max(maxLevel, level[curr])

		for _, succ := range g.Successors(curr) {
			if l := level[curr] + 1; l > level[succ] {
				level[succ] = l
			}
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if resolved != len(nodes) {
		return nil, dag.ErrGraphHasCycle
	}

	out := &Levels{
		Buckets: make([][]*dag.Node, maxLevel+1),
		level:   level,
		index:   make(map[string]int, len(nodes)),
	}
	for _, n := range nodes {
		lv := level[n.ID]
		out.index[n.ID] = len(out.Buckets[lv])
		out.Buckets[lv] = append(out.Buckets[lv], n)
	}
	return out, nil
}
