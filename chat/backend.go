package chat

import (
	"context"

	"github.com/smallnest/genaistack/workflow"
)

// ExecuteRequest is the body of one execute call.
type ExecuteRequest struct {
	Workflow   workflow.Graph           `json:"workflow"`
	Query      string                   `json:"query"`
	Config     workflow.ExecutionConfig `json:"config"`
	WorkflowID int64                    `json:"workflow_id,omitempty"`

	// ChatHistory holds every turn before the one being submitted. It is
	// never nil so it encodes as [].
	ChatHistory []Turn `json:"chat_history"`
}

// ExecuteResponse is the backend's answer to an execute call.
type ExecuteResponse struct {
	Response    string     `json:"response"`
	Query       string     `json:"query,omitempty"`
	Logs        []LogEntry `json:"logs,omitempty"`
	ExecutionID string     `json:"execution_id,omitempty"`
}

// Backend runs workflows and stores per-workflow chat history.
type Backend interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error)
	History(ctx context.Context, workflowID int64) ([]Turn, error)
	ClearHistory(ctx context.Context, workflowID int64) error
}

// Source supplies the graph and credentials sent with each submission, and
// the kind registry the graph is validated against. A Source that also has
// an IsBuilt() bool method gates submissions on it.
type Source interface {
	Snapshot() workflow.Graph
	ExecutionConfig() workflow.ExecutionConfig
	Registry() *workflow.Registry
}

// StaticSource serves a fixed graph, resolving credentials against Defaults.
// A nil Kinds means the default registry.
type StaticSource struct {
	Graph    workflow.Graph
	Defaults workflow.SessionDefaults
	Kinds    *workflow.Registry
}

func (s StaticSource) Registry() *workflow.Registry {
	if s.Kinds == nil {
		return workflow.DefaultRegistry()
	}
	return s.Kinds
}

func (s StaticSource) Snapshot() workflow.Graph {
	return s.Graph.Copy()
}

func (s StaticSource) ExecutionConfig() workflow.ExecutionConfig {
	return workflow.Resolve(s.Graph, s.Defaults)
}
