// Package render draws schedule plans and captured graphs as Graphviz
// diagrams.
//
// # Diagrams
//
// [PlanToDOT] draws a [optimizer.Plan] over its task DAG: one cluster per
// lane, nodes in capture order, dashed edges where a dependency crosses
// lanes and therefore costs a fence.
//
// [ToDOT] draws a captured [sim.Graph] at the operation level: work, fence
// records, and fence waits, one cluster per lane. Dashed edges are the
// cross-lane dependencies a replay has to synchronize on.
//
// Both produce deterministic DOT source. [RenderSVG] turns it into SVG
// in-process:
//
//	dot := render.PlanToDOT(g, plan, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
//
// # Dependencies
//
// SVG rendering uses [github.com/goccy/go-graphviz], which embeds Graphviz
// as WebAssembly, so no system install is needed.
package render
