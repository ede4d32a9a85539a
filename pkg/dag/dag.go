package dag

import (
	"errors"
	"slices"

	"github.com/matzehuels/lanecap/pkg/platform"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrSelfLoop is returned by [DAG.AddEdge] when From and To are the same
	// node. A self loop is the smallest possible cycle.
	ErrSelfLoop = errors.New("edge connects a node to itself")

	// ErrInvalidEdgeEndpoint is returned by [DAG.Validate] when an edge
	// references a node that doesn't exist. This indicates graph corruption.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is detected.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph,
// such as a kernel name or an estimated cost. Metadata maps are never nil
// after AddNode.
type Metadata map[string]any

// NodeKind distinguishes capturable GPU work from other tasks.
type NodeKind int

const (
	// NodeKindCapture is a node whose work is captured onto a lane.
	NodeKindCapture NodeKind = iota
	// NodeKindHost is a node that runs on the host and cannot be captured.
	NodeKindHost
)

var nodeKindNames = map[NodeKind]string{
	NodeKindCapture: "capture",
	NodeKindHost:    "host",
}

func (k NodeKind) String() string {
	if s, ok := nodeKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseNodeKind converts a kind name back to a NodeKind. The empty string
// is the capture kind.
func ParseNodeKind(s string) (NodeKind, bool) {
	if s == "" {
		return NodeKindCapture, true
	}
	for k, name := range nodeKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// WorkFunc enqueues a node's GPU operation on lane. It must not block on the
// device; it only describes work.
type WorkFunc func(lane platform.Lane) error

// Node is a task in the dependency graph.
//
// The zero value is not usable - ID must be set before adding to a DAG.
type Node struct {
	ID   string   // Unique identifier, stable for the graph's lifetime
	Kind NodeKind // Only NodeKindCapture nodes can be optimized
	Work WorkFunc // Enqueues the node's operation; nil means no-op
	Meta Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// Capturable reports whether the node can be captured onto a lane.
func (n *Node) Capturable() bool { return n.Kind == NodeKindCapture }

// Edge is a dependency: To may only start after From has completed.
type Edge struct {
	From string // Predecessor node ID
	To   string // Successor node ID
}

// DAG is a directed acyclic graph of tasks.
//
// Nodes are kept in insertion order, and successor and predecessor lists in
// edge insertion order, so every traversal of the same graph is
// deterministic.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent mutation. Concurrent reads are safe.
type DAG struct {
	nodes    map[string]*Node
	order    []*Node
	edges    []Edge
	outgoing map[string][]string // nodeID -> successor IDs
	incoming map[string][]string // nodeID -> predecessor IDs
	meta     Metadata
}

// New creates an empty DAG with optional graph-level metadata.
// The metadata parameter can be nil, in which case an empty map is created.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns the graph-level metadata map.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode adds a node to the graph.
// Returns ErrInvalidNodeID if the node ID is empty, or ErrDuplicateNodeID
// if a node with the same ID already exists.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	node := &n
	d.nodes[node.ID] = node
	d.order = append(d.order, node)
	return nil
}

// AddEdge adds a dependency between two existing nodes.
// Returns ErrUnknownSourceNode or ErrUnknownTargetNode for missing
// endpoints, and ErrSelfLoop when From == To. AddEdge does not check for
// longer cycles; use Validate after building the graph.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if e.From == e.To {
		return ErrSelfLoop
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// RemoveEdge removes the edge from→to if it exists.
// No error is returned if the edge does not exist. If multiple edges
// exist between the same nodes, all are removed.
func (d *DAG) RemoveEdge(from, to string) {
	d.edges = slices.DeleteFunc(d.edges, func(e Edge) bool { return e.From == from && e.To == to })
	d.outgoing[from] = slices.DeleteFunc(d.outgoing[from], func(s string) bool { return s == to })
	d.incoming[to] = slices.DeleteFunc(d.incoming[to], func(s string) bool { return s == from })
}

// Nodes returns all nodes in insertion order. The returned slice is a copy,
// but the pointers refer to the graph's nodes.
func (d *DAG) Nodes() []*Node { return slices.Clone(d.order) }

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.order) }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Node returns the node with the given ID and true, or nil and false if not found.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Successors returns the IDs of nodes that depend on id, in edge order.
// The returned slice should not be modified.
func (d *DAG) Successors(id string) []string { return d.outgoing[id] }

// Predecessors returns the IDs of nodes id depends on, in edge order.
// The returned slice should not be modified.
func (d *DAG) Predecessors(id string) []string { return d.incoming[id] }

// OutDegree returns the number of successors of the node.
func (d *DAG) OutDegree(id string) int { return len(d.outgoing[id]) }

// InDegree returns the number of predecessors of the node.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// Sources returns nodes with no predecessors, in insertion order.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, n := range d.order {
		if len(d.incoming[n.ID]) == 0 {
			sources = append(sources, n)
		}
	}
	return sources
}

// Sinks returns nodes with no successors, in insertion order.
func (d *DAG) Sinks() []*Node {
	var sinks []*Node
	for _, n := range d.order {
		if len(d.outgoing[n.ID]) == 0 {
			sinks = append(sinks, n)
		}
	}
	return sinks
}

// Validate checks graph integrity and returns nil if valid.
// Returns ErrInvalidEdgeEndpoint if an edge references a missing node, or
// ErrGraphHasCycle if a directed cycle exists.
//
// Cycle detection runs in O(N+E) time using an iterative depth-first
// search, so deep graphs do not grow the goroutine stack.
func (d *DAG) Validate() error {
	for _, e := range d.edges {
		_, okS := d.nodes[e.From]
		_, okD := d.nodes[e.To]
		if !okS || !okD {
			return ErrInvalidEdgeEndpoint
		}
	}
	return d.detectCycles()
}

func (d *DAG) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	type frame struct {
		id   string
		next int
	}

	color := make(map[string]int, len(d.nodes))
	for _, root := range d.order {
		if color[root.ID] != white {
			continue
		}
		color[root.ID] = gray
		stack := []frame{{id: root.ID}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succs := d.outgoing[top.id]
			if top.next == len(succs) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := succs[top.next]
			top.next++
			switch color[child] {
			case white:
				color[child] = gray
				stack = append(stack, frame{id: child})
			case gray:
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}

// NodeIDs extracts the ID from each node in a slice.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
