package workflow

// Build rule messages. They are shown to the user verbatim.
const (
	ReasonRequiredKinds   = "Workflow must include User Query, LLM Engine, and Output components"
	ReasonModelCredential = "missing API key for LLM Engine"
	ReasonConnectivity    = "Components must be connected in a valid flow"
)

// Verdict is the outcome of Validate.
type Verdict struct {
	Valid  bool
	Rule   Rule
	Reason string

	// Warnings are per-node data problems reported by the kind table. They
	// never make a verdict invalid.
	Warnings []string
}

// Err returns nil for a valid verdict, a *ConfigurationError for a missing
// model credential and a *ValidationError otherwise.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	if v.Rule == RuleModelCredential {
		return &ConfigurationError{Field: "apiKey", Reason: v.Reason}
	}
	return &ValidationError{Rule: v.Rule, Reason: v.Reason}
}

// Validate checks g against the build rules using the built-in kind table.
func Validate(g Graph, cfg ExecutionConfig) Verdict {
	return ValidateWith(defaultRegistry, g, cfg)
}

// ValidateWith checks g against the build rules, stopping at the first
// violated one:
//
//  1. every required kind is present
//  2. the llm-engine node has an API key, or cfg supplies one
//  3. some edge leaves a query-intake node and some edge enters an output
//     node
//
// Rule 3 is a minimal path check, not full reachability.
func ValidateWith(reg *Registry, g Graph, cfg ExecutionConfig) Verdict {
	for _, kind := range reg.RequiredKinds() {
		if !g.HasKind(kind) {
			return invalid(RuleRequiredKinds, ReasonRequiredKinds)
		}
	}

	llm, _ := g.First(KindLLMEngine)
	if nodeAPIKey(llm) == "" && cfg.ModelAPIKey == "" {
		return invalid(RuleModelCredential, ReasonModelCredential)
	}

	if !hasEdgeFrom(g, KindQueryIntake) || !hasEdgeInto(g, KindOutput) {
		return invalid(RuleConnectivity, ReasonConnectivity)
	}

	return Verdict{Valid: true, Warnings: collectWarnings(reg, g)}
}

func invalid(rule Rule, reason string) Verdict {
	return Verdict{Rule: rule, Reason: reason}
}

func hasEdgeFrom(g Graph, kind Kind) bool {
	for _, e := range g.Edges {
		if n, ok := g.Node(e.Source); ok && n.Kind == kind {
			return true
		}
	}
	return false
}

func hasEdgeInto(g Graph, kind Kind) bool {
	for _, e := range g.Edges {
		if n, ok := g.Node(e.Target); ok && n.Kind == kind {
			return true
		}
	}
	return false
}

func collectWarnings(reg *Registry, g Graph) []string {
	var out []string
	for _, n := range g.Nodes {
		spec, ok := reg.Lookup(n.Kind)
		if !ok || spec.Check == nil || n.Data == nil {
			continue
		}
		for _, w := range spec.Check(n.Data) {
			out = append(out, n.Label()+": "+w)
		}
	}
	return out
}
