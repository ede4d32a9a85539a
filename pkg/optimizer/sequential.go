package optimizer

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanecap/pkg/dag"
	"github.com/matzehuels/lanecap/pkg/dag/transform"
	"github.com/matzehuels/lanecap/pkg/platform"
)

// Sequential captures every node on a single lane in topological order.
// The zero value is ready to use.
type Sequential struct {
	// Logger receives debug output. If nil, output is discarded.
	Logger *log.Logger
}

// Plan schedules every node on lane 0 in topological order.
func (s *Sequential) Plan(g *dag.DAG) (*Plan, error) {
	if err := checkGraph(g); err != nil {
		return nil, err
	}

	order := transform.TopoSort(g)
	plan := &Plan{
		Strategy: StrategySequential,
		Lanes:    1,
		Levels:   min(1, len(order)),
		Steps:    make([]Step, len(order)),
	}
	for i, n := range order {
		plan.Steps[i] = Step{Node: n.ID, Index: i}
	}
	return plan, nil
}

// Optimize captures g on one lane of dev and returns the native graph.
func (s *Sequential) Optimize(ctx context.Context, dev platform.Device, g *dag.DAG) (platform.Graph, error) {
	plan, err := s.Plan(g)
	if err != nil {
		return nil, err
	}
	return Executor{Logger: s.Logger}.Execute(ctx, dev, g, plan)
}

// OptimizeSequential captures g on a single lane of dev.
func OptimizeSequential(ctx context.Context, dev platform.Device, g *dag.DAG) (platform.Graph, error) {
	return (&Sequential{}).Optimize(ctx, dev, g)
}

var _ Optimizer = (*Sequential)(nil)
