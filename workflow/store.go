package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const nodeIDPrefix = "node_"

// GraphStore owns the mutable node and edge collection of one workflow.
// Every read hands out a copy, so callers never observe a half-applied
// mutation.
type GraphStore struct {
	mu       sync.RWMutex
	registry *Registry
	nodes    []Node
	edges    []Edge

	// seq is the next node sequence number. It only grows; ids are never
	// reissued after deletion.
	seq      int
	revision uint64
	newEdge  func() string
}

// StoreOption configures a GraphStore.
type StoreOption func(*GraphStore)

// WithRegistry makes the store use reg instead of the built-in kinds.
func WithRegistry(reg *Registry) StoreOption {
	return func(s *GraphStore) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithEdgeIDs overrides edge id generation.
func WithEdgeIDs(next func() string) StoreOption {
	return func(s *GraphStore) {
		if next != nil {
			s.newEdge = next
		}
	}
}

// NewGraphStore returns an empty store.
func NewGraphStore(opts ...StoreOption) *GraphStore {
	s := &GraphStore{
		registry: defaultRegistry,
		nodes:    []Node{},
		edges:    []Edge{},
		newEdge: func() string {
			return "edge_" + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the kind table the store validates against.
func (s *GraphStore) Registry() *Registry {
	return s.registry
}

// AddNode creates a node of kind at pos with the kind's default data.
func (s *GraphStore) AddNode(kind Kind, pos Position) (Node, error) {
	spec, ok := s.registry.Lookup(kind)
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := Node{
		ID:       s.nextNodeID(),
		Kind:     kind,
		Position: pos,
		Data:     spec.NewData(),
	}
	s.nodes = append(s.nodes, n)
	s.revision++
	return n.Copy(), nil
}

func (s *GraphStore) nextNodeID() string {
	for {
		id := nodeIDPrefix + strconv.Itoa(s.seq)
		s.seq++
		if s.indexOf(id) < 0 {
			return id
		}
	}
}

func (s *GraphStore) indexOf(id string) int {
	for i, n := range s.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// UpdateNodeData replaces the data of node id wholesale. Callers pass the
// complete merged value. An absent id is ignored.
func (s *GraphStore) UpdateNodeData(id string, data NodeData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || data == nil {
		return
	}
	s.nodes[i].Data = data.Copy()
	s.revision++
}

// MoveNode records a new canvas position for node id. An absent id is
// ignored. Moving does not invalidate a build.
func (s *GraphStore) MoveNode(id string, pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.nodes[i].Position = pos
	}
}

// RemoveNode deletes node id together with every edge touching it.
func (s *GraphStore) RemoveNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)

	kept := s.edges[:0]
	for _, e := range s.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	s.edges = kept
	s.revision++
}

// Connect adds an edge from sourcePort of sourceID to targetPort of
// targetID. Parallel edges between the same ports are allowed.
func (s *GraphStore) Connect(sourceID string, sourcePort Port, targetID string, targetPort Port) (Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEdge(sourceID, sourcePort, targetID, targetPort); err != nil {
		return Edge{}, err
	}

	e := Edge{
		ID:         s.newEdge(),
		Source:     sourceID,
		SourcePort: sourcePort,
		Target:     targetID,
		TargetPort: targetPort,
	}
	s.edges = append(s.edges, e)
	s.revision++
	return e.Copy(), nil
}

func (s *GraphStore) checkEdge(sourceID string, sourcePort Port, targetID string, targetPort Port) error {
	si := s.indexOf(sourceID)
	if si < 0 {
		return unknownNode(sourceID)
	}
	ti := s.indexOf(targetID)
	if ti < 0 {
		return unknownNode(targetID)
	}

	src, dst := s.nodes[si], s.nodes[ti]
	srcSpec, ok := s.registry.Lookup(src.Kind)
	if !ok || !srcSpec.hasOutput(sourcePort) {
		return invalidPort(src.Kind, sourcePort, "output")
	}
	dstSpec, ok := s.registry.Lookup(dst.Kind)
	if !ok || !dstSpec.hasInput(targetPort) {
		return invalidPort(dst.Kind, targetPort, "input")
	}
	return nil
}

// Disconnect removes edge id. An absent id is ignored.
func (s *GraphStore) Disconnect(edgeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.edges {
		if e.ID == edgeID {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			s.revision++
			return
		}
	}
}

// Snapshot returns a deep copy of the current graph.
func (s *GraphStore) Snapshot() Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Graph{Nodes: s.nodes, Edges: s.edges}.Copy()
}

// Revision returns a counter bumped by every mutation that can change a
// build verdict.
func (s *GraphStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Replace swaps the whole graph for g, typically a loaded definition. Every
// edge is checked like Connect; on error the store is left unchanged.
func (s *GraphStore) Replace(g Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &GraphStore{registry: s.registry, nodes: make([]Node, 0, len(g.Nodes)), edges: make([]Edge, 0, len(g.Edges))}
	for _, n := range g.Nodes {
		if next.indexOf(n.ID) >= 0 {
			return fmt.Errorf("%w: node %q", ErrDuplicateID, n.ID)
		}
		n = n.Copy()
		if n.Data == nil {
			if spec, ok := s.registry.Lookup(n.Kind); ok {
				n.Data = spec.NewData()
			}
		}
		next.nodes = append(next.nodes, n)
	}

	seen := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if seen[e.ID] {
			return fmt.Errorf("%w: edge %q", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = true
		e = next.inferPorts(e.Copy())
		if err := next.checkEdge(e.Source, e.SourcePort, e.Target, e.TargetPort); err != nil {
			return fmt.Errorf("edge %s: %w", e.ID, err)
		}
		next.edges = append(next.edges, e)
	}

	s.nodes = next.nodes
	s.edges = next.edges
	for _, n := range s.nodes {
		if num, ok := strings.CutPrefix(n.ID, nodeIDPrefix); ok {
			if v, err := strconv.Atoi(num); err == nil && v >= s.seq {
				s.seq = v + 1
			}
		}
	}
	s.revision++
	return nil
}

// inferPorts fills an empty handle when the endpoint kind declares exactly
// one port in that direction. Older definitions omit single handles.
func (s *GraphStore) inferPorts(e Edge) Edge {
	if e.SourcePort == "" {
		if i := s.indexOf(e.Source); i >= 0 {
			if spec, ok := s.registry.Lookup(s.nodes[i].Kind); ok && len(spec.Outputs) == 1 {
				e.SourcePort = spec.Outputs[0]
			}
		}
	}
	if e.TargetPort == "" {
		if i := s.indexOf(e.Target); i >= 0 {
			if spec, ok := s.registry.Lookup(s.nodes[i].Kind); ok && len(spec.Inputs) == 1 {
				e.TargetPort = spec.Inputs[0]
			}
		}
	}
	return e
}

// Len returns the node and edge counts.
func (s *GraphStore) Len() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}
