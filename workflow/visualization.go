package workflow

import (
	"fmt"
	"strings"
)

// Exporter renders a workflow graph in diagram formats.
type Exporter struct {
	graph Graph
}

// NewExporter creates an exporter over a snapshot.
func NewExporter(g Graph) *Exporter {
	return &Exporter{graph: g}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
	// ShowPorts labels each edge with its source and target port.
	ShowPorts bool
}

var kindFill = map[Kind]string{
	KindQueryIntake:   "#F59E0B",
	KindKnowledgeBase: "#8B5CF6",
	KindLLMEngine:     "#3B82F6",
	KindOutput:        "#22C55E",
}

// DrawMermaid generates a left-to-right Mermaid flowchart.
func (ge *Exporter) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{Direction: "LR", ShowPorts: true})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options.
// Nodes are emitted in execution order so the diagram reads like the
// pipeline.
func (ge *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "LR"
	}
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	for _, n := range ge.orderedNodes() {
		shape := "[\"%s\"]"
		switch n.Kind {
		case KindQueryIntake:
			shape = "([\"%s\"])"
		case KindOutput:
			shape = "[[\"%s\"]]"
		}
		sb.WriteString(fmt.Sprintf("    %s"+shape+"\n", n.ID, escapeLabel(n.Label())))
	}

	for _, e := range ge.graph.Edges {
		if opts.ShowPorts {
			sb.WriteString(fmt.Sprintf("    %s -->|%s → %s| %s\n", e.Source, e.SourcePort, e.TargetPort, e.Target))
		} else {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", e.Source, e.Target))
		}
	}

	for _, n := range ge.graph.Nodes {
		if fill, ok := kindFill[n.Kind]; ok {
			sb.WriteString(fmt.Sprintf("    style %s fill:%s\n", n.ID, fill))
		}
	}

	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the graph
func (ge *Exporter) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box, style=filled];\n")

	for _, n := range ge.orderedNodes() {
		fill := "white"
		if f, ok := kindFill[n.Kind]; ok {
			fill = f
		}
		sb.WriteString(fmt.Sprintf("    %q [label=%q, fillcolor=%q];\n", n.ID, n.Label(), fill))
	}

	for _, e := range ge.graph.Edges {
		sb.WriteString(fmt.Sprintf("    %q -> %q [taillabel=%q, headlabel=%q];\n", e.Source, e.Target, e.SourcePort, e.TargetPort))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// DrawASCII lists the pipeline steps in execution order, one per line, with
// the nodes each step feeds.
func (ge *Exporter) DrawASCII() string {
	nodes := ge.orderedNodes()
	if len(nodes) == 0 {
		return "(empty workflow)\n"
	}

	var sb strings.Builder
	for i, n := range nodes {
		connector := "├──"
		if i == len(nodes)-1 {
			connector = "└──"
		}
		sb.WriteString(fmt.Sprintf("%s %s (%s)", connector, n.Label(), n.ID))

		var targets []string
		for _, e := range ge.graph.Edges {
			if e.Source == n.ID {
				targets = append(targets, fmt.Sprintf("%s.%s", e.Target, e.TargetPort))
			}
		}
		if len(targets) > 0 {
			sb.WriteString(" → " + strings.Join(targets, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// orderedNodes returns nodes in execution order followed by any nodes left
// out of it (cycles).
func (ge *Exporter) orderedNodes() []Node {
	order := ExecutionOrder(ge.graph)
	placed := make(map[string]bool, len(order))
	out := make([]Node, 0, len(ge.graph.Nodes))
	for _, id := range order {
		if n, ok := ge.graph.Node(id); ok {
			out = append(out, n)
			placed[id] = true
		}
	}
	for _, n := range ge.graph.Nodes {
		if !placed[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
