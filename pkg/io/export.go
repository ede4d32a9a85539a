package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/lanecap/pkg/dag"
)

type graph struct {
	Nodes []node `json:"nodes" toml:"nodes"`
	Edges []edge `json:"edges" toml:"edges"`
}

type node struct {
	ID     string       `json:"id" toml:"id"`
	Kind   string       `json:"kind,omitempty" toml:"kind,omitempty"`
	Kernel string       `json:"kernel,omitempty" toml:"kernel,omitempty"`
	Meta   dag.Metadata `json:"meta,omitempty" toml:"meta,omitempty"`
}

type edge struct {
	From string `json:"from" toml:"from"`
	To   string `json:"to" toml:"to"`
}

func toGraph(g *dag.DAG) graph {
	nodes := g.Nodes()
	edges := g.Edges()
	out := graph{
		Nodes: make([]node, len(nodes)),
		Edges: make([]edge, len(edges)),
	}
	for i, n := range nodes {
		nd := node{ID: n.ID}
		if n.Kind != dag.NodeKindCapture {
			nd.Kind = n.Kind.String()
		}
		for k, v := range n.Meta {
			if k == MetaKernel {
				nd.Kernel, _ = v.(string)
				continue
			}
			if nd.Meta == nil {
				nd.Meta = dag.Metadata{}
			}
			nd.Meta[k] = v
		}
		out.Nodes[i] = nd
	}
	for i, e := range edges {
		out.Edges[i] = edge{From: e.From, To: e.To}
	}
	return out
}

// WriteJSON encodes a DAG as indented JSON and writes it to w.
// The output can be re-imported with [ReadJSON].
func WriteJSON(g *dag.DAG, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toGraph(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteTOML encodes a DAG as TOML and writes it to w.
func WriteTOML(g *dag.DAG, w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(toGraph(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a DAG to a JSON file at path.
func ExportJSON(g *dag.DAG, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(g, f)
}
