package workflow

// SessionDefaults are the credentials configured for the whole editing
// session, used when a node carries none.
type SessionDefaults struct {
	ModelAPIKey     string
	WebSearchAPIKey string
}

// ExecutionConfig is the effective credential set sent with each execute
// request.
type ExecutionConfig struct {
	ModelAPIKey     string `json:"geminiApiKey"`
	WebSearchAPIKey string `json:"serpApiKey"`
}

// Resolve derives the execution config for g. A key on the llm-engine node
// always wins over the session default; when both are missing the field is
// left empty and Validate reports it.
func Resolve(g Graph, defaults SessionDefaults) ExecutionConfig {
	llm, _ := g.First(KindLLMEngine)

	cfg := ExecutionConfig{
		ModelAPIKey:     nodeAPIKey(llm),
		WebSearchAPIKey: nodeSerpKey(llm),
	}
	if cfg.ModelAPIKey == "" {
		cfg.ModelAPIKey = defaults.ModelAPIKey
	}
	if cfg.WebSearchAPIKey == "" {
		cfg.WebSearchAPIKey = defaults.WebSearchAPIKey
	}
	return cfg
}

func nodeAPIKey(n Node) string {
	switch d := n.Data.(type) {
	case *LLMEngineData:
		return d.APIKey
	case *RawData:
		s, _ := d.Fields["apiKey"].(string)
		return s
	}
	return ""
}

func nodeSerpKey(n Node) string {
	switch d := n.Data.(type) {
	case *LLMEngineData:
		return d.SerpAPIKey
	case *RawData:
		s, _ := d.Fields["serpApiKey"].(string)
		return s
	}
	return ""
}
