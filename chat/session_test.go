package chat

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/smallnest/genaistack/log"
	"github.com/smallnest/genaistack/workflow"
)

type fakeBackend struct {
	mu       sync.Mutex
	requests []ExecuteRequest
	reply    func(req ExecuteRequest) (ExecuteResponse, error)

	history    map[int64][]Turn
	historyErr error
	historyN   int

	clearErr error
	cleared  []int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		history: map[int64][]Turn{},
		reply: func(req ExecuteRequest) (ExecuteResponse, error) {
			return ExecuteResponse{Response: "echo: " + req.Query, Query: req.Query}, nil
		},
	}
}

func (f *fakeBackend) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := f.reply
	f.mu.Unlock()
	return reply(req)
}

func (f *fakeBackend) History(ctx context.Context, workflowID int64) ([]Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyN++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[workflowID], nil
}

func (f *fakeBackend) ClearHistory(ctx context.Context, workflowID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, workflowID)
	return f.clearErr
}

func buildableSource() StaticSource {
	return StaticSource{
		Graph: workflow.Graph{
			Nodes: []workflow.Node{
				{ID: "q", Kind: workflow.KindQueryIntake, Data: &workflow.QueryIntakeData{}},
				{ID: "llm", Kind: workflow.KindLLMEngine, Data: &workflow.LLMEngineData{}},
				{ID: "out", Kind: workflow.KindOutput, Data: &workflow.OutputData{}},
			},
			Edges: []workflow.Edge{
				{ID: "e1", Source: "q", SourcePort: workflow.PortQuery, Target: "llm", TargetPort: workflow.PortQuery},
				{ID: "e2", Source: "llm", SourcePort: workflow.PortResponse, Target: "out", TargetPort: workflow.PortResponse},
			},
		},
		Defaults: workflow.SessionDefaults{ModelAPIKey: "session-key", WebSearchAPIKey: "serp"},
	}
}

func TestSubmit_ChatHistoryExcludesPendingTurn(t *testing.T) {
	backend := newFakeBackend()
	backend.reply = func(req ExecuteRequest) (ExecuteResponse, error) {
		return ExecuteResponse{Response: "hello"}, nil
	}
	s := NewSession(backend, buildableSource())

	res, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "hello"}, res.Reply)

	require.Len(t, backend.requests, 1)
	first := backend.requests[0]
	assert.NotNil(t, first.ChatHistory)
	assert.Empty(t, first.ChatHistory)
	assert.Equal(t, "hi", first.Query)

	prior := []Turn{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}
	assert.Equal(t, prior, s.Turns())

	_, err = s.Submit(context.Background(), "again")
	require.NoError(t, err)
	require.Len(t, backend.requests, 2)
	assert.Equal(t, prior, backend.requests[1].ChatHistory)
	assert.Len(t, s.Turns(), 4)
}

func TestSubmit_RequestCarriesGraphAndConfig(t *testing.T) {
	backend := newFakeBackend()
	src := buildableSource()
	s := NewSession(backend, src)
	s.Open(context.Background(), 12)

	_, err := s.Submit(context.Background(), "q")
	require.NoError(t, err)

	req := backend.requests[0]
	assert.Equal(t, src.Graph, req.Workflow)
	assert.Equal(t, workflow.ExecutionConfig{ModelAPIKey: "session-key", WebSearchAPIKey: "serp"}, req.Config)
	assert.Equal(t, int64(12), req.WorkflowID)
}

func TestSubmit_FailureBecomesTurn(t *testing.T) {
	backend := newFakeBackend()
	backend.reply = func(req ExecuteRequest) (ExecuteResponse, error) {
		return ExecuteResponse{}, errors.New("Execution error: boom")
	}
	s := NewSession(backend, buildableSource())

	res, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.EqualError(t, res.Err, "Execution error: boom")
	assert.Equal(t, "Error: Execution error: boom", res.Reply.Content)
	assert.Equal(t, StateFailed, s.State())

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleAssistant, turns[1].Role)

	backend.reply = func(req ExecuteRequest) (ExecuteResponse, error) {
		return ExecuteResponse{Response: "ok"}, nil
	}
	_, err = s.Submit(context.Background(), "retry")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.Len(t, backend.requests[1].ChatHistory, 2)
}

func TestSubmit_Timeout(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(&slowBackend{fakeBackend: backend}, buildableSource(), WithTimeout(10*time.Millisecond))

	res, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, "Error: request timed out", res.Reply.Content)
}

type slowBackend struct {
	*fakeBackend
}

func (b *slowBackend) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error) {
	<-ctx.Done()
	return ExecuteResponse{}, ctx.Err()
}

func TestSubmit_RejectsEmptyAndBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	backend := newFakeBackend()
	backend.reply = func(req ExecuteRequest) (ExecuteResponse, error) {
		close(started)
		<-release
		return ExecuteResponse{Response: "done"}, nil
	}
	s := NewSession(backend, buildableSource())

	_, err := s.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Submit(context.Background(), "first")
	}()
	<-started

	assert.Equal(t, StateSending, s.State())
	_, err = s.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-done
	assert.Len(t, s.Turns(), 2)
	assert.Len(t, backend.requests, 1)
}

func TestSubmit_UnbuildableGraphIsNotSent(t *testing.T) {
	backend := newFakeBackend()
	src := buildableSource()
	src.Defaults = workflow.SessionDefaults{}
	s := NewSession(backend, src)

	_, err := s.Submit(context.Background(), "hi")
	var cfgErr *workflow.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, backend.requests)
	assert.Empty(t, s.Turns())
}

func TestSubmit_LogsReplacedOnlyWhenPresent(t *testing.T) {
	backend := newFakeBackend()
	logs := []LogEntry{
		{StepName: "LLM Engine", Status: StatusCompleted, Message: "done", Metadata: map[string]any{"duration_ms": 120.0}},
	}
	backend.reply = func(req ExecuteRequest) (ExecuteResponse, error) {
		if req.Query == "with logs" {
			return ExecuteResponse{Response: "a", Logs: logs}, nil
		}
		return ExecuteResponse{Response: "b"}, nil
	}
	s := NewSession(backend, buildableSource())

	_, err := s.Submit(context.Background(), "with logs")
	require.NoError(t, err)
	assert.Equal(t, logs, s.Logs())

	_, err = s.Submit(context.Background(), "without")
	require.NoError(t, err)
	assert.Equal(t, logs, s.Logs())
}

func TestListeners_SeeOptimisticTurnFirst(t *testing.T) {
	backend := newFakeBackend()
	var events []Event
	s := NewSession(backend, buildableSource(), WithListener(ListenerFunc(func(ctx context.Context, e Event) {
		events = append(events, e)
	})))

	_, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)

	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{EventTurnAppended, EventStateChanged, EventTurnAppended, EventStateChanged}, types)
	assert.Equal(t, RoleUser, events[0].Turn.Role)
	assert.Equal(t, StateSending, events[1].State)
	assert.Equal(t, "echo: hi", events[2].Turn.Content)
	assert.Equal(t, StateIdle, events[3].State)
}

func TestListeners_PanicIsContained(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(newFakeBackend(), buildableSource(), WithLogger(log.NewCustomLogger(&buf, log.LogLevelWarn)))
	s.AddListener(ListenerFunc(func(ctx context.Context, e Event) { panic("listener bug") }))

	res, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", res.Reply.Content)
	assert.Contains(t, buf.String(), "session listener panicked on turn_appended: listener bug")
}

func TestLoadHistory_OncePerActivation(t *testing.T) {
	backend := newFakeBackend()
	stored := []Turn{{Role: RoleUser, Content: "old"}, {Role: RoleAssistant, Content: "reply"}}
	backend.history[5] = stored
	s := NewSession(backend, buildableSource())
	s.Open(context.Background(), 5)

	require.NoError(t, s.LoadHistory(context.Background()))
	require.NoError(t, s.LoadHistory(context.Background()))

	assert.Equal(t, 1, backend.historyN)
	assert.Equal(t, stored, s.Turns())

	s.Open(context.Background(), 5)
	require.NoError(t, s.LoadHistory(context.Background()))
	assert.Equal(t, 1, backend.historyN, "reopening the same workflow keeps the loaded history")
}

func TestLoadHistory_UnsavedWorkflowSkipsFetch(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, buildableSource())

	require.NoError(t, s.LoadHistory(context.Background()))
	assert.Zero(t, backend.historyN)
}

func TestLoadHistory_FailureIsNonFatal(t *testing.T) {
	backend := newFakeBackend()
	backend.historyErr = errors.New("connection refused")
	s := NewSession(backend, buildableSource())
	s.Open(context.Background(), 3)

	err := s.LoadHistory(context.Background())
	assert.Error(t, err)
	assert.Empty(t, s.Turns())

	_, err = s.Submit(context.Background(), "still works")
	require.NoError(t, err)
	assert.Len(t, s.Turns(), 2)
}

// Clearing is local-first: the remote purge failing does not bring the turns
// back.
func TestClearHistory_LocalFirst(t *testing.T) {
	backend := newFakeBackend()
	backend.reply = func(req ExecuteRequest) (ExecuteResponse, error) {
		return ExecuteResponse{Response: "r", Logs: []LogEntry{{StepName: "s", Status: StatusInfo}}}, nil
	}
	backend.clearErr = errors.New("network down")
	s := NewSession(backend, buildableSource())
	s.Open(context.Background(), 9)

	_, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)
	require.NotEmpty(t, s.Logs())

	err = s.ClearHistory(context.Background())
	assert.Error(t, err)
	assert.Empty(t, s.Turns())
	assert.Empty(t, s.Logs())
	assert.Equal(t, []int64{9}, backend.cleared)
}

func TestOpen_DifferentWorkflowResets(t *testing.T) {
	backend := newFakeBackend()
	backend.history[1] = []Turn{{Role: RoleUser, Content: "from A"}, {Role: RoleAssistant, Content: "A reply"}}
	s := NewSession(backend, buildableSource())

	s.Open(context.Background(), 1)
	require.NoError(t, s.LoadHistory(context.Background()))
	require.Len(t, s.Turns(), 2)

	s.Open(context.Background(), 2)
	assert.Empty(t, s.Turns())
	assert.Empty(t, s.Logs())
	require.NoError(t, s.LoadHistory(context.Background()))
	assert.Empty(t, s.Turns())
	assert.Equal(t, 2, backend.historyN)
}

func TestOpen_DropsReplyForPreviousWorkflow(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	backend := newFakeBackend()
	backend.reply = func(req ExecuteRequest) (ExecuteResponse, error) {
		close(started)
		<-release
		return ExecuteResponse{Response: "late"}, nil
	}
	s := NewSession(backend, buildableSource())
	s.Open(context.Background(), 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Submit(context.Background(), "for A")
	}()
	<-started
	s.Open(context.Background(), 2)
	close(release)
	<-done

	assert.Empty(t, s.Turns())
	assert.Equal(t, StateIdle, s.State())
}

func TestMessages(t *testing.T) {
	s := NewSession(newFakeBackend(), buildableSource())
	_, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.ChatMessageTypeHuman, msgs[0].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, msgs[1].Role)
	assert.Equal(t, llms.TextContent{Text: "echo: hi"}, msgs[1].Parts[0])
}

func TestLogEntryDuration(t *testing.T) {
	d, ok := LogEntry{Metadata: map[string]any{"duration_ms": 1500.0}}.Duration()
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, ok = LogEntry{Metadata: map[string]any{"durationMs": 20}}.Duration()
	require.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, d)

	_, ok = LogEntry{}.Duration()
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "failed", StateFailed.String())
}

func TestOpen_SameUnsavedWorkflowKeepsTurns(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, buildableSource())
	ctx := context.Background()

	s.Open(ctx, 0)
	_, err := s.Submit(ctx, "hi")
	require.NoError(t, err)
	require.Len(t, s.Turns(), 2)

	s.Open(ctx, 0)
	assert.Len(t, s.Turns(), 2)
	require.NoError(t, s.LoadHistory(ctx))
	assert.Len(t, s.Turns(), 2)
	assert.Zero(t, backend.historyN)
}

func TestReset_ClearsEvenForSameWorkflow(t *testing.T) {
	s := NewSession(newFakeBackend(), buildableSource())
	ctx := context.Background()

	_, err := s.Submit(ctx, "hi")
	require.NoError(t, err)

	var cleared []int64
	s.AddListener(ListenerFunc(func(ctx context.Context, e Event) {
		if e.Type == EventCleared {
			cleared = append(cleared, e.WorkflowID)
		}
	}))
	s.Reset(ctx, 0)
	assert.Empty(t, s.Turns())
	assert.Empty(t, s.Logs())
	assert.Equal(t, []int64{0}, cleared)

	s.Reset(ctx, 4)
	assert.Equal(t, int64(4), s.WorkflowID())
}

func TestAttach_KeepsUnsavedConversation(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, buildableSource())
	ctx := context.Background()

	_, err := s.Submit(ctx, "before save")
	require.NoError(t, err)

	require.True(t, s.Attach(7))
	assert.Equal(t, int64(7), s.WorkflowID())
	assert.Len(t, s.Turns(), 2)

	// A workflow created a moment ago has nothing stored yet.
	require.NoError(t, s.LoadHistory(ctx))
	assert.Zero(t, backend.historyN)

	_, err = s.Submit(ctx, "after save")
	require.NoError(t, err)
	require.Len(t, backend.requests, 2)
	assert.Equal(t, int64(7), backend.requests[1].WorkflowID)
	assert.Len(t, backend.requests[1].ChatHistory, 2)

	assert.False(t, s.Attach(8))
	assert.False(t, NewSession(backend, buildableSource()).Attach(0))
	assert.Equal(t, int64(7), s.WorkflowID())
}

func TestSubmit_ValidatesAgainstSourceRegistry(t *testing.T) {
	reg := workflow.DefaultRegistry()
	require.NoError(t, reg.Register(workflow.KindSpec{
		Kind:     "reviewer",
		Label:    "Reviewer",
		Inputs:   []workflow.Port{workflow.PortResponse},
		Outputs:  []workflow.Port{workflow.PortResponse},
		Required: true,
		NewData:  func() workflow.NodeData { return &workflow.OutputData{} },
	}))

	backend := newFakeBackend()
	src := buildableSource()
	src.Kinds = reg
	s := NewSession(backend, src)

	_, err := s.Submit(context.Background(), "hi")
	var verr *workflow.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, backend.requests)
	assert.Empty(t, s.Turns())

	// The same graph passes the built-in kinds.
	_, err = NewSession(backend, buildableSource()).Submit(context.Background(), "hi")
	assert.NoError(t, err)
}

type gatedSource struct {
	StaticSource
	built bool
}

func (g gatedSource) IsBuilt() bool { return g.built }

func TestSubmit_RefusesUnbuiltSource(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, gatedSource{StaticSource: buildableSource()})

	_, err := s.Submit(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotBuilt)
	assert.Empty(t, backend.requests)
	assert.Empty(t, s.Turns())

	s = NewSession(backend, gatedSource{StaticSource: buildableSource(), built: true})
	_, err = s.Submit(context.Background(), "hi")
	assert.NoError(t, err)
}
