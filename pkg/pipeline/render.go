package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/lanecap/pkg/dag"
	"github.com/matzehuels/lanecap/pkg/optimizer"
	"github.com/matzehuels/lanecap/pkg/platform/sim"
	"github.com/matzehuels/lanecap/pkg/render"
)

// PlanDocument is the JSON artifact of a run.
type PlanDocument struct {
	GraphHash string          `json:"graph_hash"`
	Plan      *optimizer.Plan `json:"plan"`
	Stats     optimizer.Stats `json:"stats"`
}

// Render produces the requested artifacts. capture may be nil when no
// capture format is requested.
func Render(ctx context.Context, g *dag.DAG, graphHash string, plan *optimizer.Plan, capture *sim.Graph, opts Options) (map[string][]byte, error) {
	out := make(map[string][]byte, len(opts.Formats))
	ropts := render.Options{Detailed: opts.Detailed}

	for _, format := range opts.Formats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			data []byte
			err  error
		)
		switch format {
		case FormatJSON:
			data, err = json.MarshalIndent(PlanDocument{GraphHash: graphHash, Plan: plan, Stats: plan.Stats()}, "", "  ")
		case FormatDOT:
			data = []byte(render.PlanToDOT(g, plan, ropts))
		case FormatSVG:
			data, err = render.RenderSVG(ctx, render.PlanToDOT(g, plan, ropts))
		case FormatCaptureDOT, FormatCaptureSVG:
			if capture == nil {
				return nil, fmt.Errorf("format %s needs a capture", format)
			}
			dot := render.ToDOT(capture)
			if format == FormatCaptureDOT {
				data = []byte(dot)
			} else {
				data, err = render.RenderSVG(ctx, dot)
			}
		default:
			err = ValidateFormat(format)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", format, err)
		}
		out[format] = data
	}
	return out, nil
}
