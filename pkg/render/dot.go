package render

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/lanecap/pkg/dag"
	graphio "github.com/matzehuels/lanecap/pkg/io"
	"github.com/matzehuels/lanecap/pkg/optimizer"
	"github.com/matzehuels/lanecap/pkg/platform/sim"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds level, index, and metadata to node labels.
	Detailed bool
}

func header(buf *bytes.Buffer, name string) {
	fmt.Fprintf(buf, "digraph %s {\n", name)
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")
}

func laneCluster(buf *bytes.Buffer, lane int, body []string) {
	fmt.Fprintf(buf, "  subgraph cluster_lane%d {\n", lane)
	fmt.Fprintf(buf, "    label=\"lane %d\";\n", lane)
	buf.WriteString("    style=\"rounded,dashed\";\n")
	buf.WriteString("    color=grey;\n")
	for _, line := range body {
		buf.WriteString("    " + line + "\n")
	}
	buf.WriteString("  }\n")
}

// PlanToDOT converts a plan over g to Graphviz DOT. Edges between nodes on
// different lanes are dashed and labelled with the fence they wait on.
func PlanToDOT(g *dag.DAG, plan *optimizer.Plan, opts Options) string {
	var buf bytes.Buffer
	header(&buf, "plan")

	byLane := make([][]string, plan.Lanes)
	lane := make(map[string]int, len(plan.Steps))
	for _, st := range plan.Steps {
		if st.Lane < 0 || st.Lane >= plan.Lanes {
			continue
		}
		lane[st.Node] = st.Lane
		n, _ := g.Node(st.Node)
		attrs := []string{fmt.Sprintf("label=%q", planLabel(n, st, opts.Detailed))}
		if st.Signal {
			attrs = append(attrs, "penwidth=2")
		}
		byLane[st.Lane] = append(byLane[st.Lane], fmt.Sprintf("%q [%s];", st.Node, strings.Join(attrs, ", ")))
	}
	for i, body := range byLane {
		laneCluster(&buf, i, body)
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if lane[e.From] != lane[e.To] {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=\"#d9480f\", label=\"fence\"];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func planLabel(n *dag.Node, st optimizer.Step, detailed bool) string {
	if !detailed || n == nil {
		return st.Node
	}
	parts := []string{fmt.Sprintf("level: %d, index: %d", st.Level, st.Index)}
	if k := graphio.Kernel(n); k != n.ID {
		parts = append(parts, "kernel: "+k)
	}
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		if k == graphio.MetaKernel {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}
	return st.Node + "\n" + strings.Join(parts, "\n")
}

// ToDOT converts a captured graph to Graphviz DOT at the operation level.
// Work operations are boxes, fence records and waits are small diamonds.
// Dependencies between lanes are dashed.
func ToDOT(g *sim.Graph) string {
	var buf bytes.Buffer
	header(&buf, "capture")

	ops := g.Ops()
	byLane := make([][]string, g.LaneCount())
	for _, op := range ops {
		if op.Lane < 0 || op.Lane >= len(byLane) {
			continue
		}
		byLane[op.Lane] = append(byLane[op.Lane], fmt.Sprintf("op%d [%s];", op.ID, opAttrs(op)))
	}
	for i, body := range byLane {
		laneCluster(&buf, i, body)
	}

	buf.WriteString("\n")
	for _, op := range ops {
		for _, d := range op.Deps {
			if ops[d].Lane != op.Lane {
				fmt.Fprintf(&buf, "  op%d -> op%d [style=dashed, color=\"#d9480f\"];\n", d, op.ID)
				continue
			}
			fmt.Fprintf(&buf, "  op%d -> op%d;\n", d, op.ID)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func opAttrs(op sim.Op) string {
	switch op.Kind {
	case sim.OpRecord:
		return fmt.Sprintf("label=%q, shape=diamond, style=filled, fillcolor=\"#ffe8cc\", fontsize=10", "record "+op.Label)
	case sim.OpWait:
		return fmt.Sprintf("label=%q, shape=diamond, style=filled, fillcolor=\"#e7f5ff\", fontsize=10", "wait "+op.Label)
	}
	return fmt.Sprintf("label=%q", op.Label)
}
