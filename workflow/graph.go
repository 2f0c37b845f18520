package workflow

import (
	"encoding/json"
	"fmt"
)

// Position is the canvas coordinate of a node. It belongs to the renderer;
// nothing in this package reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one pipeline step.
type Node struct {
	ID       string
	Kind     Kind
	Position Position
	Data     NodeData

	// Extra holds canvas-owned fields (selection, measured size, ...) that
	// are written back untouched.
	Extra map[string]any
}

// Label returns the node's display name, falling back to the kind label.
func (n Node) Label() string {
	if n.Data != nil {
		if t := n.Data.Title(); t != "" {
			return t
		}
	}
	return defaultRegistry.Label(n.Kind)
}

// Copy returns a deep copy of n.
func (n Node) Copy() Node {
	c := n
	if n.Data != nil {
		c.Data = n.Data.Copy()
	}
	c.Extra = copyMap(n.Extra)
	return c
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Type     Kind            `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

var nodeKeys = []string{"id", "type", "position", "data"}

// MarshalJSON writes the canvas node shape {id, type, position, data}.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{ID: n.ID, Type: n.Kind, Position: n.Position}
	if n.Data != nil {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("encode node %s data: %w", n.ID, err)
		}
		out.Data = b
	}
	return marshalWithExtra(out, n.Extra)
}

// UnmarshalJSON reads the canvas node shape using the default registry.
func (n *Node) UnmarshalJSON(b []byte) error {
	return n.decode(defaultRegistry, b)
}

func (n *Node) decode(reg *Registry, b []byte) error {
	var raw nodeJSON
	extra, err := unmarshalWithExtra(b, &raw, nodeKeys)
	if err != nil {
		return err
	}
	data, err := decodeData(reg, raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*n = Node{ID: raw.ID, Kind: raw.Type, Position: raw.Position, Data: data, Extra: extra}
	return nil
}

// Edge connects an output port of one node to an input port of another.
type Edge struct {
	ID         string
	Source     string
	SourcePort Port
	Target     string
	TargetPort Port

	Extra map[string]any
}

// Copy returns a deep copy of e.
func (e Edge) Copy() Edge {
	c := e
	c.Extra = copyMap(e.Extra)
	return c
}

// Touches reports whether nodeID is either endpoint of e.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

type edgeJSON struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle Port   `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle Port   `json:"targetHandle,omitempty"`
}

var edgeKeys = []string{"id", "source", "sourceHandle", "target", "targetHandle"}

// MarshalJSON writes the canvas edge shape.
func (e Edge) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(edgeJSON{
		ID:           e.ID,
		Source:       e.Source,
		SourceHandle: e.SourcePort,
		Target:       e.Target,
		TargetHandle: e.TargetPort,
	}, e.Extra)
}

// UnmarshalJSON reads the canvas edge shape.
func (e *Edge) UnmarshalJSON(b []byte) error {
	var raw edgeJSON
	extra, err := unmarshalWithExtra(b, &raw, edgeKeys)
	if err != nil {
		return err
	}
	*e = Edge{
		ID:         raw.ID,
		Source:     raw.Source,
		SourcePort: raw.SourceHandle,
		Target:     raw.Target,
		TargetPort: raw.TargetHandle,
		Extra:      extra,
	}
	return nil
}

// Graph is an immutable-by-convention snapshot of a workflow definition.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodesOfKind returns the nodes of kind in definition order.
func (g Graph) NodesOfKind(kind Kind) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// First returns the first node of kind.
func (g Graph) First(kind Kind) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Kind == kind {
			return n, true
		}
	}
	return Node{}, false
}

// HasKind reports whether any node has kind.
func (g Graph) HasKind(kind Kind) bool {
	_, ok := g.First(kind)
	return ok
}

// Copy returns a deep copy of g.
func (g Graph) Copy() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Copy()
	}
	for i, e := range g.Edges {
		out.Edges[i] = e.Copy()
	}
	return out
}

// IsEmpty reports whether g has no nodes.
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// ParseGraph decodes a definition using reg for node data. A nil reg means
// the built-in kinds.
func ParseGraph(b []byte, reg *Registry) (Graph, error) {
	if reg == nil {
		reg = defaultRegistry
	}

	var raw struct {
		Nodes []json.RawMessage `json:"nodes"`
		Edges []Edge            `json:"edges"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Graph{}, fmt.Errorf("decode workflow definition: %w", err)
	}

	g := Graph{Nodes: make([]Node, 0, len(raw.Nodes)), Edges: raw.Edges}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	for i, rn := range raw.Nodes {
		var n Node
		if err := n.decode(reg, rn); err != nil {
			return Graph{}, fmt.Errorf("decode node %d: %w", i, err)
		}
		g.Nodes = append(g.Nodes, n)
	}
	return g, nil
}
