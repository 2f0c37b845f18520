package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const savedDefinition = `{
  "nodes": [
    {"id": "node_0", "type": "userQuery", "position": {"x": 10, "y": 20}, "data": {"label": "Ask"}, "selected": true},
    {"id": "node_1", "type": "knowledgeBase", "position": {"x": 200, "y": 20},
     "data": {"label": "Docs", "documentId": 7, "filename": "a.pdf", "collectionName": "doc_7", "chunkSize": 500}},
    {"id": "node_2", "type": "llmEngine", "position": {"x": 400, "y": 20},
     "data": {"label": "LLM Engine", "apiKey": "K", "model": "gemini-2.5-pro", "temperature": 0.3, "enableWebSearch": true}},
    {"id": "node_3", "type": "output", "position": {"x": 600, "y": 20}, "data": {"label": "Output"}},
    {"id": "node_9", "type": "webhook", "position": {"x": 0, "y": 0}, "data": {"url": "https://example.com"}}
  ],
  "edges": [
    {"id": "e1", "source": "node_0", "sourceHandle": "query", "target": "node_1", "targetHandle": "query", "animated": true},
    {"id": "e2", "source": "node_1", "sourceHandle": "context", "target": "node_2", "targetHandle": "context"},
    {"id": "e3", "source": "node_2", "sourceHandle": "response", "target": "node_3", "targetHandle": "response"}
  ]
}`

func TestParseGraph(t *testing.T) {
	g, err := ParseGraph([]byte(savedDefinition), nil)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 5)
	require.Len(t, g.Edges, 3)

	q := g.Nodes[0]
	assert.Equal(t, KindQueryIntake, q.Kind)
	assert.Equal(t, "Ask", q.Label())
	assert.Equal(t, true, q.Extra["selected"])

	kb := g.Nodes[1].Data.(*KnowledgeBaseData)
	assert.Equal(t, int64(7), kb.DocumentID)
	assert.Equal(t, "doc_7", kb.CollectionName)
	assert.Equal(t, float64(500), kb.Extra["chunkSize"])

	llm := g.Nodes[2].Data.(*LLMEngineData)
	assert.Equal(t, "gemini-2.5-pro", llm.EffectiveModel())
	assert.Equal(t, 0.3, llm.EffectiveTemperature())
	assert.True(t, llm.EnableWebSearch)

	raw, ok := g.Nodes[4].Data.(*RawData)
	require.True(t, ok)
	assert.Equal(t, Kind("webhook"), raw.Kind())
	assert.Equal(t, "webhook", g.Nodes[4].Label())

	assert.Equal(t, PortContext, g.Edges[1].SourcePort)
	assert.Equal(t, true, g.Edges[0].Extra["animated"])
}

func TestGraph_RoundTripKeepsUnknownFields(t *testing.T) {
	g, err := ParseGraph([]byte(savedDefinition), nil)
	require.NoError(t, err)

	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, savedDefinition, string(b))
}

func TestParseGraph_MissingDataUsesDefaults(t *testing.T) {
	g, err := ParseGraph([]byte(`{"nodes":[{"id":"a","type":"llmEngine","position":{"x":0,"y":0}}]}`), nil)
	require.NoError(t, err)

	assert.NotNil(t, g.Edges)
	d := g.Nodes[0].Data.(*LLMEngineData)
	assert.Equal(t, DefaultModel, d.EffectiveModel())
	assert.Equal(t, DefaultTemperature, d.EffectiveTemperature())
}

func TestParseGraph_Invalid(t *testing.T) {
	_, err := ParseGraph([]byte(`{"nodes": 3}`), nil)
	assert.Error(t, err)

	_, err = ParseGraph([]byte(`{"nodes":[{"id":"a","type":"llmEngine","data":{"temperature":"hot"}}]}`), nil)
	assert.Error(t, err)
}

func TestNodeCopy_IsDeep(t *testing.T) {
	n := Node{
		ID:    "a",
		Kind:  KindKnowledgeBase,
		Data:  &KnowledgeBaseData{Extra: map[string]any{"tags": []any{"x"}}},
		Extra: map[string]any{"measured": map[string]any{"w": 10.0}},
	}

	c := n.Copy()
	c.Data.(*KnowledgeBaseData).Extra["tags"].([]any)[0] = "y"
	c.Extra["measured"].(map[string]any)["w"] = 20.0

	assert.Equal(t, "x", n.Data.(*KnowledgeBaseData).Extra["tags"].([]any)[0])
	assert.Equal(t, 10.0, n.Extra["measured"].(map[string]any)["w"])
}

func TestGraphLookups(t *testing.T) {
	g, err := ParseGraph([]byte(savedDefinition), nil)
	require.NoError(t, err)

	assert.True(t, g.HasKind(KindOutput))
	assert.Len(t, g.NodesOfKind(KindLLMEngine), 1)
	first, ok := g.First(KindKnowledgeBase)
	require.True(t, ok)
	assert.Equal(t, "node_1", first.ID)
	assert.False(t, g.IsEmpty())
	assert.True(t, Graph{}.IsEmpty())
}

func TestExecutionOrder(t *testing.T) {
	g, err := ParseGraph([]byte(savedDefinition), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"node_0", "node_9", "node_1", "node_2", "node_3"}, ExecutionOrder(g))
}

func TestExecutionOrder_SkipsCycles(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []Edge{
			{ID: "1", Source: "b", Target: "c"},
			{ID: "2", Source: "c", Target: "b"},
		},
	}

	assert.Equal(t, []string{"a"}, ExecutionOrder(g))
}
