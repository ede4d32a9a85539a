package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/matzehuels/lanecap/pkg/cache"
	"github.com/matzehuels/lanecap/pkg/dag"
	graphio "github.com/matzehuels/lanecap/pkg/io"
	"github.com/matzehuels/lanecap/pkg/optimizer"
	"github.com/matzehuels/lanecap/pkg/platform/sim"
)

// Load reads the graph the options point at and returns it with its content
// hash. The hash is computed over the canonical JSON encoding, so the same
// graph hashes identically whether it came from JSON or TOML.
func Load(opts Options) (*dag.DAG, string, error) {
	var (
		g   *dag.DAG
		err error
	)
	switch {
	case opts.Path != "":
		g, err = graphio.ImportFile(opts.Path)
	case opts.GraphFormat == GraphTOML:
		g, err = graphio.ReadTOML(bytes.NewReader(opts.Graph))
	default:
		g, err = graphio.ReadJSON(bytes.NewReader(opts.Graph))
	}
	if err != nil {
		return nil, "", err
	}

	hash, err := GraphHash(g)
	if err != nil {
		return nil, "", err
	}
	return g, hash, nil
}

// GraphHash returns the content hash of g.
func GraphHash(g *dag.DAG) (string, error) {
	var buf bytes.Buffer
	if err := graphio.WriteJSON(g, &buf); err != nil {
		return "", fmt.Errorf("hash graph: %w", err)
	}
	return cache.Hash(buf.Bytes()), nil
}

// Capture replays plan on a fresh simulated device. Every capture node of g
// is bound to launch its own ID.
func Capture(ctx context.Context, g *dag.DAG, plan *optimizer.Plan, opts Options) (*sim.Graph, error) {
	dev := sim.NewDevice()
	graphio.BindWork(g, graphio.Launching(dev.Launch))

	pg, err := optimizer.Executor{Logger: opts.Logger}.Execute(ctx, dev, g, plan)
	if err != nil {
		return nil, err
	}
	return pg.(*sim.Graph), nil
}
