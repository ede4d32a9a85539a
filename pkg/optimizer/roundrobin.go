package optimizer

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanecap/pkg/dag"
	"github.com/matzehuels/lanecap/pkg/dag/transform"
	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/platform"
)

// DefaultStreams is the lane count used by a zero RoundRobin.
const DefaultStreams = 4

// RoundRobin levelizes the graph and assigns the i-th node of every level to
// lane i % NumStreams(). It is a greedy load-balancing heuristic: it does not
// model per-node cost.
//
// The zero value uses DefaultStreams lanes.
type RoundRobin struct {
	// Logger receives debug output. If nil, output is discarded.
	Logger *log.Logger

	numStreams int
}

// NewRoundRobin creates a round-robin optimizer over n lanes.
// It returns a CONFIGURATION_ERROR if n < 1.
func NewRoundRobin(n int) (*RoundRobin, error) {
	if err := errs.ValidateLanes(n); err != nil {
		return nil, err
	}
	return &RoundRobin{numStreams: n}, nil
}

// NumStreams returns the number of lanes the optimizer uses.
func (r *RoundRobin) NumStreams() int {
	if r.numStreams == 0 {
		return DefaultStreams
	}
	return r.numStreams
}

// SetNumStreams sets the number of lanes. It returns a CONFIGURATION_ERROR
// and leaves the optimizer unchanged if n < 1.
func (r *RoundRobin) SetNumStreams(n int) error {
	if err := errs.ValidateLanes(n); err != nil {
		return err
	}
	r.numStreams = n
	return nil
}

// Plan levelizes g and assigns lanes round-robin within each level.
func (r *RoundRobin) Plan(g *dag.DAG) (*Plan, error) {
	if err := checkGraph(g); err != nil {
		return nil, err
	}
	levels, err := transform.Levelize(g)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "levelize")
	}

	n := r.NumStreams()
	lane := func(id string) int {
		idx, _ := levels.Index(id)
		return idx % n
	}

	plan := &Plan{
		Strategy: StrategyRoundRobin,
		Lanes:    n,
		Levels:   levels.Len(),
		Steps:    make([]Step, 0, g.NodeCount()),
	}
	for lv, bucket := range levels.Buckets {
		for idx, node := range bucket {
			sid := idx % n
			step := Step{Node: node.ID, Lane: sid, Level: lv, Index: idx}
			for _, p := range g.Predecessors(node.ID) {
				if lane(p) != sid {
					step.Waits = append(step.Waits, p)
				}
			}
			for _, s := range g.Successors(node.ID) {
				if lane(s) != sid {
					step.Signal = true
					break
				}
			}
			plan.Steps = append(plan.Steps, step)
		}
	}
	return plan, nil
}

// Optimize captures g across NumStreams() lanes of dev.
func (r *RoundRobin) Optimize(ctx context.Context, dev platform.Device, g *dag.DAG) (platform.Graph, error) {
	plan, err := r.Plan(g)
	if err != nil {
		return nil, err
	}
	return Executor{Logger: r.Logger}.Execute(ctx, dev, g, plan)
}

// OptimizeRoundRobin captures g across n lanes of dev. A CONFIGURATION_ERROR
// for n < 1 is returned before dev is touched.
func OptimizeRoundRobin(ctx context.Context, dev platform.Device, g *dag.DAG, n int) (platform.Graph, error) {
	r, err := NewRoundRobin(n)
	if err != nil {
		return nil, err
	}
	return r.Optimize(ctx, dev, g)
}

var _ Optimizer = (*RoundRobin)(nil)
