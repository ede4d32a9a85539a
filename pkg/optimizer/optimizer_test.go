package optimizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/lanecap/pkg/dag"
	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/platform"
	"github.com/matzehuels/lanecap/pkg/platform/sim"
)

// build creates a DAG whose nodes launch their own ID on dev.
func build(t *testing.T, dev *sim.Device, ids []string, edges [][2]string) *dag.DAG {
	t.Helper()
	g := dag.New(nil)
	for _, id := range ids {
		n := dag.Node{ID: id, Work: func(l platform.Lane) error { return dev.Launch(l, id) }}
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s) error: %v", id, err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(dag.Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatalf("AddEdge(%s, %s) error: %v", e[0], e[1], err)
		}
	}
	return g
}

func randomDAG(t *testing.T, dev *sim.Device, r *rand.Rand, n int, density float64) *dag.DAG {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}
	var edges [][2]string
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r.Float64() < density {
				edges = append(edges, [2]string{ids[i], ids[j]})
			}
		}
	}
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return build(t, dev, ids, edges)
}

var (
	chain   = [][2]string{{"A", "B"}, {"B", "C"}}
	diamond = [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}}
)

func asSim(t *testing.T, pg platform.Graph) *sim.Graph {
	t.Helper()
	g, ok := pg.(*sim.Graph)
	if !ok {
		t.Fatalf("graph is %T, want *sim.Graph", pg)
	}
	return g
}

func checkReleased(t *testing.T, dev *sim.Device) {
	t.Helper()
	if n := dev.LiveLanes(); n != 0 {
		t.Errorf("LiveLanes() = %d, want 0", n)
	}
	if n := dev.LiveFences(); n != 0 {
		t.Errorf("LiveFences() = %d, want 0", n)
	}
}

// checkCapture verifies that the capture honours every edge of g and matches
// the plan's lane assignment and fence statistics.
func checkCapture(t *testing.T, g *dag.DAG, plan *Plan, sg *sim.Graph) {
	t.Helper()
	works := sg.Works()
	if len(works) != g.NodeCount() {
		t.Fatalf("captured %d works, want %d", len(works), g.NodeCount())
	}
	seen := make(map[string]bool)
	for _, w := range works {
		if seen[w] {
			t.Errorf("work %s captured twice", w)
		}
		seen[w] = true
	}
	for _, e := range g.Edges() {
		if !sg.HappensBefore(e.From, e.To) {
			t.Errorf("edge %s→%s not ordered in capture", e.From, e.To)
		}
	}
	for _, st := range plan.Steps {
		if got := sg.LaneOf(st.Node); got != st.Lane {
			t.Errorf("LaneOf(%s) = %d, want %d", st.Node, got, st.Lane)
		}
	}
	stats := plan.Stats()
	if sg.FenceCount() != stats.Fences || sg.WaitCount() != stats.Waits {
		t.Errorf("fences=%d waits=%d, want %d/%d", sg.FenceCount(), sg.WaitCount(), stats.Fences, stats.Waits)
	}
	if sg.LaneCount() != plan.Lanes {
		t.Errorf("LaneCount() = %d, want %d", sg.LaneCount(), plan.Lanes)
	}
}

func TestSequential_Chain(t *testing.T) {
	dev := sim.NewDevice()
	g := build(t, dev, []string{"A", "B", "C"}, chain)

	pg, err := OptimizeSequential(context.Background(), dev, g)
	if err != nil {
		t.Fatalf("OptimizeSequential() error: %v", err)
	}
	sg := asSim(t, pg)

	if diff := cmp.Diff([]string{"A", "B", "C"}, sg.Order()); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
	if sg.LaneCount() != 1 || sg.FenceCount() != 0 || sg.WaitCount() != 0 {
		t.Errorf("lanes=%d fences=%d waits=%d, want 1/0/0", sg.LaneCount(), sg.FenceCount(), sg.WaitCount())
	}
	if sg.Mode() != platform.CaptureModeThreadLocal {
		t.Errorf("Mode() = %v, want thread-local", sg.Mode())
	}
	if n := dev.Calls(errs.OpAcquireFence); n != 0 {
		t.Errorf("acquired %d fences, want 0", n)
	}
	checkReleased(t, dev)
}

func TestSequential_ReplaysTopologicalOrder(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := range 20 {
		dev := sim.NewDevice()
		g := randomDAG(t, dev, r, 5+r.IntN(25), 0.2)

		s := &Sequential{}
		plan, err := s.Plan(g)
		if err != nil {
			t.Fatalf("case %d: Plan() error: %v", i, err)
		}
		pg, err := s.Optimize(context.Background(), dev, g)
		if err != nil {
			t.Fatalf("case %d: Optimize() error: %v", i, err)
		}
		sg := asSim(t, pg)
		checkCapture(t, g, plan, sg)

		want := make([]string, len(plan.Steps))
		for j, st := range plan.Steps {
			want[j] = st.Node
		}
		if diff := cmp.Diff(want, sg.Order()); diff != "" {
			t.Errorf("case %d: Order() mismatch (-want +got):\n%s", i, diff)
		}
		checkReleased(t, dev)
	}
}

func TestRoundRobin_ChainOneLane(t *testing.T) {
	dev := sim.NewDevice()
	g := build(t, dev, []string{"A", "B", "C"}, chain)

	pg, err := OptimizeRoundRobin(context.Background(), dev, g, 1)
	if err != nil {
		t.Fatalf("OptimizeRoundRobin() error: %v", err)
	}
	sg := asSim(t, pg)
	if diff := cmp.Diff([]string{"A", "B", "C"}, sg.Order()); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
	if sg.LaneCount() != 1 || sg.FenceCount() != 0 || sg.WaitCount() != 0 {
		t.Errorf("lanes=%d fences=%d waits=%d, want 1/0/0", sg.LaneCount(), sg.FenceCount(), sg.WaitCount())
	}
	checkReleased(t, dev)
}

func TestRoundRobin_ChainTwoLanes(t *testing.T) {
	dev := sim.NewDevice()
	g := build(t, dev, []string{"A", "B", "C"}, chain)

	r, err := NewRoundRobin(2)
	if err != nil {
		t.Fatalf("NewRoundRobin(2) error: %v", err)
	}
	plan, err := r.Plan(g)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	for _, st := range plan.Steps {
		if st.Lane != 0 || len(st.Waits) != 0 || st.Signal {
			t.Errorf("step %v: want lane 0 with no fences", st)
		}
	}

	pg, err := r.Optimize(context.Background(), dev, g)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	sg := asSim(t, pg)
	checkCapture(t, g, plan, sg)

	// Only the fork and the single join remain.
	if sg.FenceCount() != 2 || sg.WaitCount() != 2 {
		t.Errorf("fences=%d waits=%d, want 2/2", sg.FenceCount(), sg.WaitCount())
	}
	checkReleased(t, dev)
}

func TestRoundRobin_Diamond(t *testing.T) {
	dev := sim.NewDevice()
	g := build(t, dev, []string{"A", "B", "C", "D"}, diamond)

	r, _ := NewRoundRobin(2)
	plan, err := r.Plan(g)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}

	want := []Step{
		{Node: "A", Lane: 0, Level: 0, Index: 0, Signal: true},
		{Node: "B", Lane: 0, Level: 1, Index: 0},
		{Node: "C", Lane: 1, Level: 1, Index: 1, Waits: []string{"A"}, Signal: true},
		{Node: "D", Lane: 0, Level: 2, Index: 0, Waits: []string{"C"}},
	}
	if diff := cmp.Diff(want, plan.Steps); diff != "" {
		t.Errorf("Steps mismatch (-want +got):\n%s", diff)
	}
	if plan.Levels != 3 {
		t.Errorf("Levels = %d, want 3", plan.Levels)
	}

	pg, err := r.Optimize(context.Background(), dev, g)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	sg := asSim(t, pg)
	checkCapture(t, g, plan, sg)
	if sg.LaneOf("B") == sg.LaneOf("C") {
		t.Error("B and C share a lane")
	}
	for _, pred := range []string{"B", "C"} {
		if !sg.HappensBefore(pred, "D") {
			t.Errorf("HappensBefore(%s, D) = false", pred)
		}
	}
	if sg.HappensBefore("B", "C") || sg.HappensBefore("C", "B") {
		t.Error("B and C are ordered, want concurrent")
	}
	checkReleased(t, dev)
}

func TestRoundRobin_OneLaneMatchesSequential(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for i := range 20 {
		dev := sim.NewDevice()
		g := randomDAG(t, dev, r, 5+r.IntN(25), 0.25)

		rr, _ := NewRoundRobin(1)
		plan, err := rr.Plan(g)
		if err != nil {
			t.Fatalf("case %d: Plan() error: %v", i, err)
		}
		pg, err := rr.Optimize(context.Background(), dev, g)
		if err != nil {
			t.Fatalf("case %d: Optimize() error: %v", i, err)
		}
		sg := asSim(t, pg)
		checkCapture(t, g, plan, sg)
		if sg.LaneCount() != 1 || sg.FenceCount() != 0 || sg.WaitCount() != 0 {
			t.Errorf("case %d: lanes=%d fences=%d waits=%d, want 1/0/0",
				i, sg.LaneCount(), sg.FenceCount(), sg.WaitCount())
		}
		checkReleased(t, dev)
	}
}

func TestRoundRobin_CrossLaneEdgesFenced(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 1))
	for i := range 40 {
		dev := sim.NewDevice()
		g := randomDAG(t, dev, r, 2+r.IntN(40), r.Float64()*0.4)
		lanes := 1 + r.IntN(6)

		rr, err := NewRoundRobin(lanes)
		if err != nil {
			t.Fatalf("NewRoundRobin(%d) error: %v", lanes, err)
		}
		plan, err := rr.Plan(g)
		if err != nil {
			t.Fatalf("case %d: Plan() error: %v", i, err)
		}
		if err := plan.Validate(g); err != nil {
			t.Fatalf("case %d: Validate() error: %v", i, err)
		}
		for _, st := range plan.Steps {
			for _, p := range g.Predecessors(st.Node) {
				cross := plan.Lane(p) != st.Lane
				if cross != slices.Contains(st.Waits, p) {
					t.Errorf("case %d: %s waits on %s = %v, cross-lane = %v",
						i, st.Node, p, !cross, cross)
				}
			}
		}

		pg, err := rr.Optimize(context.Background(), dev, g)
		if err != nil {
			t.Fatalf("case %d: Optimize() error: %v", i, err)
		}
		checkCapture(t, g, plan, asSim(t, pg))
		checkReleased(t, dev)
	}
}

func TestRoundRobin_Configuration(t *testing.T) {
	if _, err := NewRoundRobin(0); !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("NewRoundRobin(0) error = %v, want CONFIGURATION_ERROR", err)
	}
	if _, err := NewRoundRobin(-2); !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("NewRoundRobin(-2) error = %v, want CONFIGURATION_ERROR", err)
	}

	var r RoundRobin
	if got := r.NumStreams(); got != DefaultStreams {
		t.Errorf("zero NumStreams() = %d, want %d", got, DefaultStreams)
	}
	if err := r.SetNumStreams(3); err != nil {
		t.Fatalf("SetNumStreams(3) error: %v", err)
	}
	if err := r.SetNumStreams(0); !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("SetNumStreams(0) error = %v, want CONFIGURATION_ERROR", err)
	}
	if got := r.NumStreams(); got != 3 {
		t.Errorf("NumStreams() = %d after rejected set, want 3", got)
	}
}

func TestOptimizeRoundRobin_ZeroLanesTouchesNoDevice(t *testing.T) {
	dev := sim.NewDevice()
	g := build(t, dev, []string{"A", "B", "C", "D"}, diamond)

	pg, err := OptimizeRoundRobin(context.Background(), dev, g, 0)
	if !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Fatalf("error = %v, want CONFIGURATION_ERROR", err)
	}
	if pg != nil {
		t.Error("graph returned on error")
	}
	for _, op := range []errs.Op{errs.OpAcquireLane, errs.OpAcquireFence, errs.OpBeginCapture} {
		if n := dev.Calls(op); n != 0 {
			t.Errorf("Calls(%s) = %d, want 0", op, n)
		}
	}
}

func TestOptimize_PlatformFailures(t *testing.T) {
	ops := []errs.Op{
		errs.OpAcquireLane,
		errs.OpAcquireFence,
		errs.OpBeginCapture,
		errs.OpRecordFence,
		errs.OpWaitFence,
		errs.OpWork,
		errs.OpEndCapture,
	}
	for _, op := range ops {
		for _, nth := range []int{1, 2} {
			t.Run(fmt.Sprintf("%s#%d", op, nth), func(t *testing.T) {
				dev := sim.NewDevice()
				g := build(t, dev, []string{"A", "B", "C", "D"}, diamond)
				dev.FailOn(op, nth)

				pg, err := OptimizeRoundRobin(context.Background(), dev, g, 2)
				if dev.Calls(op) < nth {
					// The run never reached the nth call.
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
					return
				}
				if !errs.Is(err, errs.ErrCodePlatform) {
					t.Fatalf("error = %v, want PLATFORM_ERROR", err)
				}
				if got := errs.GetOp(err); got != op {
					t.Errorf("GetOp() = %q, want %q", got, op)
				}
				if !errors.Is(err, sim.ErrInjected) {
					t.Errorf("error %v does not wrap the injected fault", err)
				}
				if pg != nil {
					t.Error("graph returned on error")
				}
				checkReleased(t, dev)
			})
		}
	}
}

func TestSequential_BeginCaptureFailure(t *testing.T) {
	dev := sim.NewDevice()
	g := build(t, dev, []string{"A", "B", "C"}, chain)
	dev.FailOn(errs.OpBeginCapture, 1)

	_, err := OptimizeSequential(context.Background(), dev, g)
	if errs.GetOp(err) != errs.OpBeginCapture {
		t.Fatalf("error = %v, want begin_capture failure", err)
	}
	if got := errs.UserMessage(err); got != "failed to turn lane into thread-local capture mode" {
		t.Errorf("UserMessage() = %q", got)
	}
	if n := dev.Calls(errs.OpWork); n != 0 {
		t.Errorf("%d works launched after failed begin", n)
	}
	checkReleased(t, dev)
}

func TestOptimize_WorkErrorNamesNode(t *testing.T) {
	dev := sim.NewDevice()
	boom := errors.New("kernel rejected")
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "ok", Work: func(l platform.Lane) error { return dev.Launch(l, "ok") }})
	_ = g.AddNode(dag.Node{ID: "bad", Work: func(platform.Lane) error { return boom }})
	_ = g.AddEdge(dag.Edge{From: "ok", To: "bad"})

	_, err := OptimizeSequential(context.Background(), dev, g)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
	if errs.GetOp(err) != errs.OpWork {
		t.Errorf("GetOp() = %q, want work", errs.GetOp(err))
	}
	if got := errs.UserMessage(err); got != "failed to enqueue work for node bad" {
		t.Errorf("UserMessage() = %q", got)
	}
	checkReleased(t, dev)
}

func TestOptimize_NilWorkIsSkipped(t *testing.T) {
	dev := sim.NewDevice()
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "a"})
	_ = g.AddNode(dag.Node{ID: "b"})
	_ = g.AddEdge(dag.Edge{From: "a", To: "b"})

	pg, err := OptimizeRoundRobin(context.Background(), dev, g, 2)
	if err != nil {
		t.Fatalf("OptimizeRoundRobin() error: %v", err)
	}
	if works := asSim(t, pg).Works(); len(works) != 0 {
		t.Errorf("Works() = %v, want none", works)
	}
	checkReleased(t, dev)
}

func TestOptimize_RejectsHostNodes(t *testing.T) {
	dev := sim.NewDevice()
	g := build(t, dev, []string{"A"}, nil)
	_ = g.AddNode(dag.Node{ID: "H", Kind: dag.NodeKindHost})
	_ = g.AddEdge(dag.Edge{From: "A", To: "H"})

	for _, o := range []Optimizer{&Sequential{}, &RoundRobin{}} {
		if _, err := o.Optimize(context.Background(), dev, g); !errs.Is(err, errs.ErrCodeInvalidGraph) {
			t.Errorf("%T: error = %v, want INVALID_GRAPH", o, err)
		}
	}
	if n := dev.Calls(errs.OpAcquireLane); n != 0 {
		t.Errorf("Calls(acquire_lane) = %d, want 0", n)
	}
}

func TestOptimize_NilGraph(t *testing.T) {
	if _, err := (&Sequential{}).Plan(nil); !errs.Is(err, errs.ErrCodeInvalidGraph) {
		t.Errorf("Plan(nil) error = %v, want INVALID_GRAPH", err)
	}
}

func TestOptimize_CancelledContext(t *testing.T) {
	dev := sim.NewDevice()
	g := build(t, dev, []string{"A", "B", "C", "D"}, diamond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OptimizeRoundRobin(ctx, dev, g, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if n := dev.Calls(errs.OpAcquireLane); n != 0 {
		t.Errorf("Calls(acquire_lane) = %d, want 0", n)
	}
}

func TestOptimize_CancelMidCapture(t *testing.T) {
	dev := sim.NewDevice()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "A", Work: func(l platform.Lane) error {
		cancel()
		return dev.Launch(l, "A")
	}})
	_ = g.AddNode(dag.Node{ID: "B", Work: func(l platform.Lane) error { return dev.Launch(l, "B") }})
	_ = g.AddEdge(dag.Edge{From: "A", To: "B"})

	pg, err := OptimizeRoundRobin(ctx, dev, g, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if pg != nil {
		t.Error("graph returned on error")
	}
	if n := dev.Calls(errs.OpWork); n != 1 {
		t.Errorf("Calls(work) = %d, want 1", n)
	}
	checkReleased(t, dev)
}

func TestOptimize_ConcurrentRunsShareDAG(t *testing.T) {
	dev := sim.NewDevice()
	g := randomDAG(t, dev, rand.New(rand.NewPCG(9, 9)), 30, 0.15)

	rr, _ := NewRoundRobin(3)
	plan, err := rr.Plan(g)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}

	const runs = 8
	graphs := make([]platform.Graph, runs)
	failures := make([]error, runs)
	var wg sync.WaitGroup
	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			graphs[i], failures[i] = rr.Optimize(context.Background(), dev, g)
		}()
	}
	wg.Wait()

	for i := range runs {
		if failures[i] != nil {
			t.Fatalf("run %d: %v", i, failures[i])
		}
		checkCapture(t, g, plan, asSim(t, graphs[i]))
	}
	checkReleased(t, dev)
}

func TestNew(t *testing.T) {
	o, err := New(StrategyRoundRobin, 3, nil)
	if err != nil {
		t.Fatalf("New(round-robin, 3) error: %v", err)
	}
	if r, ok := o.(*RoundRobin); !ok || r.NumStreams() != 3 {
		t.Errorf("New(round-robin, 3) = %#v", o)
	}
	if _, err := New(StrategySequential, 0, nil); err != nil {
		t.Errorf("New(sequential, 0) error: %v", err)
	}
	if _, err := New(StrategyRoundRobin, 0, nil); !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("New(round-robin, 0) error = %v, want CONFIGURATION_ERROR", err)
	}
	if _, err := New("greedy", 2, nil); !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("New(greedy) error = %v, want CONFIGURATION_ERROR", err)
	}
}

func TestSequential_LoggerOutput(t *testing.T) {
	var fallback bytes.Buffer
	prev := log.Default()
	log.SetDefault(log.NewWithOptions(&fallback, log.Options{Level: log.DebugLevel}))
	t.Cleanup(func() { log.SetDefault(prev) })

	dev := sim.NewDevice()
	g := build(t, dev, []string{"A", "B", "C"}, chain)

	if _, err := (&Sequential{}).Optimize(context.Background(), dev, g); err != nil {
		t.Fatalf("Optimize() with nil Logger error: %v", err)
	}
	if fallback.Len() != 0 {
		t.Errorf("nil Logger wrote to the default logger:\n%s", fallback.String())
	}

	var buf bytes.Buffer
	s := &Sequential{Logger: log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})}
	dev = sim.NewDevice()
	if _, err := s.Optimize(context.Background(), dev, build(t, dev, []string{"A"}, nil)); err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("captured graph")) {
		t.Errorf("Logger missing capture summary: %q", buf.String())
	}
}
