package optimizer

import (
	"fmt"
	"slices"

	"github.com/matzehuels/lanecap/pkg/dag"
	errs "github.com/matzehuels/lanecap/pkg/errors"
)

// Strategy names a scheduling strategy.
type Strategy string

const (
	StrategySequential Strategy = "sequential"
	StrategyRoundRobin Strategy = "round-robin"
)

// ParseStrategy converts a strategy name, accepting "rr" as a short form.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case string(StrategySequential), "seq":
		return StrategySequential, nil
	case string(StrategyRoundRobin), "rr":
		return StrategyRoundRobin, nil
	}
	return "", errs.New(errs.ErrCodeConfiguration, "unknown strategy %q (want sequential or round-robin)", s)
}

// Plan is a device-independent schedule: the order in which nodes are
// captured, the lane each one runs on, and the fences between lanes.
type Plan struct {
	Strategy Strategy `json:"strategy"`
	Lanes    int      `json:"lanes"`
	Levels   int      `json:"levels"`
	Steps    []Step   `json:"steps"`
}

// Step captures one node.
type Step struct {
	Node  string `json:"node"`
	Lane  int    `json:"lane"`
	Level int    `json:"level"`
	Index int    `json:"index"`

	// Waits lists predecessors on other lanes whose fences the lane waits on
	// before the node's work.
	Waits []string `json:"waits,omitempty"`

	// Signal records a fence on the lane right after the node's work, for
	// successors on other lanes.
	Signal bool `json:"signal,omitempty"`
}

// ForkJoin reports whether the capture is bracketed by fork and join fences.
func (p *Plan) ForkJoin() bool { return p.Lanes > 1 }

// Stats summarizes a plan.
type Stats struct {
	Nodes          int   `json:"nodes"`
	Lanes          int   `json:"lanes"`
	Levels         int   `json:"levels"`
	CrossLaneWaits int   `json:"cross_lane_waits"`
	Signals        int   `json:"signals"`
	Fences         int   `json:"fences"` // signals plus fork and join fences
	Waits          int   `json:"waits"`  // cross-lane waits plus fork and join waits
	Load           []int `json:"load"`   // nodes per lane
}

// Stats computes the plan's fence and load statistics.
func (p *Plan) Stats() Stats {
	s := Stats{
		Nodes:  len(p.Steps),
		Lanes:  p.Lanes,
		Levels: p.Levels,
		Load:   make([]int, p.Lanes),
	}
	for _, st := range p.Steps {
		s.CrossLaneWaits += len(st.Waits)
		if st.Signal {
			s.Signals++
		}
		if st.Lane >= 0 && st.Lane < p.Lanes {
			s.Load[st.Lane]++
		}
	}
	s.Fences, s.Waits = s.Signals, s.CrossLaneWaits
	if p.ForkJoin() {
		// One fork fence waited by N-1 lanes, N-1 join fences waited by lane 0.
		s.Fences += p.Lanes
		s.Waits += 2 * (p.Lanes - 1)
	}
	return s
}

// Lane returns the lane assigned to the node, or -1 if the plan has no step
// for it.
func (p *Plan) Lane(node string) int {
	for _, st := range p.Steps {
		if st.Node == node {
			return st.Lane
		}
	}
	return -1
}

// Validate checks that p is a usable schedule for g: every node appears
// exactly once, lanes are in range, and every wait refers to a fence
// signalled by an earlier step on a different lane.
func (p *Plan) Validate(g *dag.DAG) error {
	if p.Lanes < 1 {
		return errs.New(errs.ErrCodeConfiguration, "plan uses %d lanes, want at least one", p.Lanes)
	}
	if len(p.Steps) != g.NodeCount() {
		return errs.New(errs.ErrCodeInvalidInput, "plan has %d steps for %d nodes", len(p.Steps), g.NodeCount())
	}

	done := make(map[string]int, len(p.Steps)) // node -> lane
	signalled := make(map[string]bool)
	for i, st := range p.Steps {
		if _, ok := g.Node(st.Node); !ok {
			return errs.New(errs.ErrCodeInvalidInput, "step %d: unknown node %q", i, st.Node)
		}
		if _, dup := done[st.Node]; dup {
			return errs.New(errs.ErrCodeInvalidInput, "step %d: node %q scheduled twice", i, st.Node)
		}
		if st.Lane < 0 || st.Lane >= p.Lanes {
			return errs.New(errs.ErrCodeInvalidInput, "step %d: lane %d out of range [0, %d)", i, st.Lane, p.Lanes)
		}
		for _, w := range st.Waits {
			lane, ok := done[w]
			if !ok || !signalled[w] {
				return errs.New(errs.ErrCodeInvalidInput, "step %d: waits on %q before it signals", i, w)
			}
			if lane == st.Lane {
				return errs.New(errs.ErrCodeInvalidInput, "step %d: waits on %q on its own lane", i, w)
			}
		}
		for _, pred := range g.Predecessors(st.Node) {
			lane, ok := done[pred]
			if !ok {
				return errs.New(errs.ErrCodeInvalidInput, "step %d: %q scheduled before predecessor %q", i, st.Node, pred)
			}
			if lane != st.Lane && !slices.Contains(st.Waits, pred) {
				return errs.New(errs.ErrCodeInvalidInput, "step %d: %q does not wait on cross-lane predecessor %q", i, st.Node, pred)
			}
		}
		done[st.Node] = st.Lane
		signalled[st.Node] = st.Signal
	}
	return nil
}

// checkGraph rejects graphs the optimizers cannot capture.
func checkGraph(g *dag.DAG) error {
	if g == nil {
		return errs.New(errs.ErrCodeInvalidGraph, "graph is nil")
	}
	if err := g.Validate(); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidGraph, err, "invalid graph")
	}
	for _, n := range g.Nodes() {
		if !n.Capturable() {
			return errs.New(errs.ErrCodeInvalidGraph, "node %q is a %s node and cannot be captured", n.ID, n.Kind)
		}
	}
	return nil
}

func (s Step) String() string {
	return fmt.Sprintf("%s@lane%d(level=%d, index=%d)", s.Node, s.Lane, s.Level, s.Index)
}
