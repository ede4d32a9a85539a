package optimizer

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/lanecap/pkg/dag"
	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/observability"
	"github.com/matzehuels/lanecap/pkg/platform"
)

// Executor captures plans onto a device.
type Executor struct {
	// Logger receives debug output. If nil, output is discarded.
	Logger *log.Logger
}

// Execute captures g on dev following plan with the default executor.
func Execute(ctx context.Context, dev platform.Device, g *dag.DAG, plan *Plan) (platform.Graph, error) {
	return Executor{}.Execute(ctx, dev, g, plan)
}

// Execute captures g on dev following plan and returns the native graph.
//
// The calling goroutine is locked to its OS thread for the duration of the
// capture. Lanes and fences are released before Execute returns, whatever the
// outcome. On error no graph is returned.
func (e Executor) Execute(ctx context.Context, dev platform.Device, g *dag.DAG, plan *Plan) (out platform.Graph, err error) {
	if plan == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "plan is nil")
	}
	if err := checkGraph(g); err != nil {
		return nil, err
	}
	if err := plan.Validate(g); err != nil {
		return nil, err
	}

	logger := e.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	stats := plan.Stats()
	run := observability.Run{
		ID:       uuid.NewString(),
		Strategy: string(plan.Strategy),
		Nodes:    stats.Nodes,
		Lanes:    stats.Lanes,
	}
	hooks := observability.Optimizer()
	hooks.OnOptimizeStart(ctx, run)
	start := time.Now()
	defer func() {
		rs := observability.RunStats{Levels: stats.Levels, Fences: stats.Fences, Waits: stats.Waits}
		hooks.OnOptimizeComplete(ctx, run, rs, time.Since(start), err)
	}()

	out, err = capture(ctx, dev, g, plan)
	if err != nil {
		logger.Debug("capture failed", "run", run.ID, "strategy", plan.Strategy, "err", err)
		return nil, err
	}
	logger.Debug("captured graph",
		"run", run.ID,
		"strategy", plan.Strategy,
		"nodes", stats.Nodes,
		"levels", stats.Levels,
		"lanes", stats.Lanes,
		"fences", stats.Fences,
		"elapsed", time.Since(start).Round(time.Microsecond))
	return out, nil
}

// capture replays plan against dev. Deferred calls run in reverse, so the
// session is aborted before the scope releases its lanes.
func capture(ctx context.Context, dev platform.Device, g *dag.DAG, plan *Plan) (out platform.Graph, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scope := platform.NewScope(dev)
	defer func() {
		if cerr := scope.Close(); cerr != nil && err == nil {
			out, err = nil, cerr
		}
	}()

	lanes, err := scope.Lanes(plan.Lanes)
	if err != nil {
		return nil, err
	}
	origin := lanes[0]

	sess, err := platform.Begin(dev, origin, platform.CaptureModeThreadLocal)
	if err != nil {
		return nil, err
	}
	defer sess.Abort()

	if plan.ForkJoin() {
		if err := fork(scope, sess, lanes); err != nil {
			return nil, err
		}
	}

	fences := make(map[string]platform.Fence) // node -> fence recorded after its work
	for _, st := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lane := lanes[st.Lane]
		for _, w := range st.Waits {
			if err := sess.Wait(lane, fences[w]); err != nil {
				return nil, err
			}
		}

		node, _ := g.Node(st.Node)
		if node.Work != nil {
			if err := node.Work(lane); err != nil {
				return nil, &errs.Error{
					Code:    errs.ErrCodePlatform,
					Op:      errs.OpWork,
					Message: "failed to enqueue work for node " + node.ID,
					Cause:   err,
				}
			}
		}

		if st.Signal {
			f, err := scope.Fence()
			if err != nil {
				return nil, err
			}
			if err := sess.Record(f, lane); err != nil {
				return nil, err
			}
			fences[st.Node] = f
		}
	}

	if plan.ForkJoin() {
		if err := join(scope, sess, lanes); err != nil {
			return nil, err
		}
	}
	return sess.End()
}

// fork records a fence on the origin lane and makes every other lane wait on
// it, pulling them into the capture.
func fork(scope *platform.Scope, sess *platform.Session, lanes []platform.Lane) error {
	f, err := scope.Fence()
	if err != nil {
		return err
	}
	if err := sess.Record(f, lanes[0]); err != nil {
		return err
	}
	for _, l := range lanes[1:] {
		if err := sess.Wait(l, f); err != nil {
			return err
		}
	}
	return nil
}

// join records a fence on every non-origin lane and makes the origin wait on
// each one.
func join(scope *platform.Scope, sess *platform.Session, lanes []platform.Lane) error {
	for _, l := range lanes[1:] {
		f, err := scope.Fence()
		if err != nil {
			return err
		}
		if err := sess.Record(f, l); err != nil {
			return err
		}
		if err := sess.Wait(lanes[0], f); err != nil {
			return err
		}
	}
	return nil
}
