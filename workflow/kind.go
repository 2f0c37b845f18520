package workflow

import (
	"fmt"
	"sync"
)

// Kind identifies a node's pipeline role. The string values are the canvas
// type names stored in persisted definitions.
type Kind string

const (
	KindQueryIntake   Kind = "userQuery"
	KindKnowledgeBase Kind = "knowledgeBase"
	KindLLMEngine     Kind = "llmEngine"
	KindOutput        Kind = "output"
)

// Port names a directional attachment point on a node.
type Port string

const (
	PortQuery    Port = "query"
	PortContext  Port = "context"
	PortResponse Port = "response"
)

// KindSpec is one row of the capability table: everything the store, the
// validator and the renderer need to know about a node kind.
type KindSpec struct {
	Kind  Kind
	Label string

	Inputs  []Port
	Outputs []Port

	// Required kinds must appear at least once in a buildable graph.
	Required bool

	// NewData returns fresh default data for a node of this kind.
	NewData func() NodeData

	// Check reports non-fatal problems with a node's data. It never affects
	// the build verdict.
	Check func(NodeData) []string
}

func (s KindSpec) hasInput(p Port) bool {
	for _, in := range s.Inputs {
		if in == p {
			return true
		}
	}
	return false
}

func (s KindSpec) hasOutput(p Port) bool {
	for _, out := range s.Outputs {
		if out == p {
			return true
		}
	}
	return false
}

// Registry maps kinds to their specs. Adding a node kind is a Register call.
type Registry struct {
	mu    sync.RWMutex
	specs map[Kind]KindSpec
	order []Kind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[Kind]KindSpec)}
}

// Register adds or replaces a kind.
func (r *Registry) Register(spec KindSpec) error {
	if spec.Kind == "" {
		return fmt.Errorf("kind spec without kind")
	}
	if spec.NewData == nil {
		return fmt.Errorf("kind %s: NewData is required", spec.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Kind]; !exists {
		r.order = append(r.order, spec.Kind)
	}
	r.specs[spec.Kind] = spec
	return nil
}

// Lookup returns the spec for kind.
func (r *Registry) Lookup(kind Kind) (KindSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[kind]
	return spec, ok
}

// Kinds returns registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// RequiredKinds returns the kinds every buildable graph must contain, in
// registration order.
func (r *Registry) RequiredKinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Kind
	for _, k := range r.order {
		if r.specs[k].Required {
			out = append(out, k)
		}
	}
	return out
}

// Label returns the human readable name of kind, or the raw kind string when
// it is not registered.
func (r *Registry) Label(kind Kind) string {
	if spec, ok := r.Lookup(kind); ok && spec.Label != "" {
		return spec.Label
	}
	return string(kind)
}

// DefaultRegistry returns a registry holding the four built-in kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, spec := range builtinKinds() {
		_ = r.Register(spec)
	}
	return r
}

func builtinKinds() []KindSpec {
	return []KindSpec{
		{
			Kind:     KindQueryIntake,
			Label:    "User Query",
			Outputs:  []Port{PortQuery},
			Required: true,
			NewData:  func() NodeData { return &QueryIntakeData{Label: "User Query"} },
		},
		{
			Kind:    KindKnowledgeBase,
			Label:   "Knowledge Base",
			Inputs:  []Port{PortQuery},
			Outputs: []Port{PortContext},
			NewData: func() NodeData { return &KnowledgeBaseData{Label: "Knowledge Base"} },
			Check:   checkKnowledgeBase,
		},
		{
			Kind:     KindLLMEngine,
			Label:    "LLM Engine",
			Inputs:   []Port{PortQuery, PortContext},
			Outputs:  []Port{PortResponse},
			Required: true,
			NewData:  func() NodeData { return &LLMEngineData{Label: "LLM Engine"} },
			Check:    checkLLMEngine,
		},
		{
			Kind:     KindOutput,
			Label:    "Output",
			Inputs:   []Port{PortResponse},
			Required: true,
			NewData:  func() NodeData { return &OutputData{Label: "Output"} },
		},
	}
}

var defaultRegistry = DefaultRegistry()
