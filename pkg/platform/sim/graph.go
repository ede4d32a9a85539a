package sim

import (
	"fmt"
	"slices"

	"github.com/matzehuels/lanecap/pkg/platform"
)

// OpKind distinguishes the operations recorded in a captured graph.
type OpKind int

const (
	// OpWork is a unit of work enqueued by a node's work callback.
	OpWork OpKind = iota
	// OpRecord records a fence at the current tail of a lane.
	OpRecord
	// OpWait makes a lane wait for a recorded fence.
	OpWait
)

var opKindNames = map[OpKind]string{
	OpWork:   "work",
	OpRecord: "record",
	OpWait:   "wait",
}

func (k OpKind) String() string {
	if s, ok := opKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one captured operation.
type Op struct {
	ID    int    // Position in capture order
	Kind  OpKind // Work, record or wait
	Lane  int    // Lane index within the capture; the origin lane is 0
	Label string // Work label, or the fence name for record/wait
	Deps  []int  // IDs of operations this one must follow
}

// Graph is the replayable artifact produced by [Device.EndCapture].
// It is immutable and safe for concurrent reads.
type Graph struct {
	mode  platform.CaptureMode
	lanes int
	ops   []Op
	works map[string]int // label -> op ID of first work with that label
}

func newGraph(c *capture) *Graph {
	g := &Graph{
		mode:  c.mode,
		lanes: len(c.lanes),
		ops:   slices.Clone(c.ops),
		works: make(map[string]int),
	}
	for _, op := range g.ops {
		if op.Kind != OpWork {
			continue
		}
		if _, dup := g.works[op.Label]; !dup {
			g.works[op.Label] = op.ID
		}
	}
	return g
}

func (g *Graph) String() string {
	return fmt.Sprintf("sim.Graph(ops=%d, lanes=%d, fences=%d)", len(g.ops), g.lanes, g.FenceCount())
}

// Mode returns the capture mode the graph was recorded in.
func (g *Graph) Mode() platform.CaptureMode { return g.mode }

// Ops returns a copy of the captured operations in capture order.
func (g *Graph) Ops() []Op { return slices.Clone(g.ops) }

// LaneCount returns the number of lanes that took part in the capture.
func (g *Graph) LaneCount() int { return g.lanes }

// FenceCount returns the number of fence records in the graph.
func (g *Graph) FenceCount() int { return g.count(OpRecord) }

// WaitCount returns the number of fence waits in the graph.
func (g *Graph) WaitCount() int { return g.count(OpWait) }

func (g *Graph) count(kind OpKind) int {
	n := 0
	for _, op := range g.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Works returns the work labels in capture order.
func (g *Graph) Works() []string {
	var out []string
	for _, op := range g.ops {
		if op.Kind == OpWork {
			out = append(out, op.Label)
		}
	}
	return out
}

// LaneOf returns the lane index the labelled work was captured on, or -1.
func (g *Graph) LaneOf(label string) int {
	id, ok := g.works[label]
	if !ok {
		return -1
	}
	return g.ops[id].Lane
}

// Order returns the work labels in the order a replay would issue them when
// it always runs the lowest-numbered ready operation first. The result
// respects every captured dependency.
func (g *Graph) Order() []string {
	indeg := make([]int, len(g.ops))
	succ := make([][]int, len(g.ops))
	for _, op := range g.ops {
		for _, d := range op.Deps {
			succ[d] = append(succ[d], op.ID)
			indeg[op.ID]++
		}
	}

	var ready []int
	for id, n := range indeg {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	var out []string
	for len(ready) > 0 {
		slices.Sort(ready)
		id := ready[0]
		ready = ready[1:]
		if g.ops[id].Kind == OpWork {
			out = append(out, g.ops[id].Label)
		}
		for _, s := range succ[id] {
			indeg[s]--
			if indeg[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	return out
}

// HappensBefore reports whether the work labelled a is guaranteed to complete
// before the work labelled b starts, in every replay.
func (g *Graph) HappensBefore(a, b string) bool {
	from, ok := g.works[a]
	if !ok {
		return false
	}
	to, ok := g.works[b]
	if !ok || from == to {
		return false
	}

	seen := make(map[int]bool)
	stack := []int{to}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range g.ops[id].Deps {
			if d == from {
				return true
			}
			if !seen[d] {
				seen[d] = true
				stack = append(stack, d)
			}
		}
	}
	return false
}

var _ platform.Graph = (*Graph)(nil)
