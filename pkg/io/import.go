package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/lanecap/pkg/dag"
	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/platform"
)

// MetaKernel is the metadata key holding a node's kernel name.
const MetaKernel = "kernel"

// ReadJSON decodes a JSON graph from r into a DAG.
//
// The returned DAG is independent of r. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*dag.DAG, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode json")
	}
	return data.build()
}

// ReadTOML decodes a TOML graph from r into a DAG.
func ReadTOML(r io.Reader) (*dag.DAG, error) {
	var data graph
	md, err := toml.NewDecoder(r).Decode(&data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode toml")
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, errs.New(errs.ErrCodeInvalidFormat, "unknown key %q", undec[0].String())
	}
	return data.build()
}

// ImportFile reads the graph file at path, choosing the decoder by
// extension.
func ImportFile(path string) (*dag.DAG, error) {
	var read func(io.Reader) (*dag.DAG, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		read = ReadJSON
	case ".toml":
		read = ReadTOML
	default:
		return nil, errs.New(errs.ErrCodeUnsupported, "unsupported graph file extension %q (want .json or .toml)", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "graph file %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	g, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// BindWork sets the work of every capture node in g to fn(node).
// Host nodes are left alone.
func BindWork(g *dag.DAG, fn func(n *dag.Node) dag.WorkFunc) {
	for _, n := range g.Nodes() {
		if n.Capturable() {
			n.Work = fn(n)
		}
	}
}

// Kernel returns the node's kernel name, falling back to its ID.
func Kernel(n *dag.Node) string {
	if k, ok := n.Meta[MetaKernel].(string); ok && k != "" {
		return k
	}
	return n.ID
}

// LaunchFunc enqueues a labelled operation on a lane.
type LaunchFunc func(lane platform.Lane, label string) error

// Launching returns a binder for [BindWork] that launches each node's ID.
func Launching(launch LaunchFunc) func(n *dag.Node) dag.WorkFunc {
	return func(n *dag.Node) dag.WorkFunc {
		id := n.ID
		return func(lane platform.Lane) error { return launch(lane, id) }
	}
}

func (data graph) build() (*dag.DAG, error) {
	g := dag.New(nil)
	for _, n := range data.Nodes {
		kind, ok := dag.ParseNodeKind(n.Kind)
		if !ok {
			return nil, errs.New(errs.ErrCodeInvalidFormat, "node %s: unknown kind %q", n.ID, n.Kind)
		}
		if err := errs.ValidateNodeID(n.ID); err != nil {
			return nil, err
		}
		nd := dag.Node{ID: n.ID, Kind: kind, Meta: n.Meta}
		if n.Kernel != "" {
			if nd.Meta == nil {
				nd.Meta = dag.Metadata{}
			}
			nd.Meta[MetaKernel] = n.Kernel
		}
		if err := g.AddNode(nd); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "node %q", n.ID)
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(dag.Edge{From: e.From, To: e.To}); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "edge %s->%s", e.From, e.To)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "invalid graph")
	}
	return g, nil
}
