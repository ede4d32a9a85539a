package optimizer

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanecap/pkg/dag"
	"github.com/matzehuels/lanecap/pkg/platform"
)

// Optimizer turns a task DAG into a native execution graph.
type Optimizer interface {
	// Plan computes a schedule without touching a device.
	Plan(g *dag.DAG) (*Plan, error)
	// Optimize plans g and captures it on dev.
	Optimize(ctx context.Context, dev platform.Device, g *dag.DAG) (platform.Graph, error)
}

// New creates an optimizer for the strategy. lanes is ignored for the
// sequential strategy and must be at least one for round-robin.
func New(strategy Strategy, lanes int, logger *log.Logger) (Optimizer, error) {
	switch strategy {
	case StrategySequential:
		return &Sequential{Logger: logger}, nil
	case StrategyRoundRobin:
		r, err := NewRoundRobin(lanes)
		if err != nil {
			return nil, err
		}
		r.Logger = logger
		return r, nil
	}
	_, err := ParseStrategy(string(strategy))
	return nil, err
}
