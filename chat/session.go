package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/smallnest/genaistack/log"
	"github.com/smallnest/genaistack/workflow"
)

var (
	// ErrBusy is returned when a message is submitted while another one is
	// in flight.
	ErrBusy = errors.New("a message is already being sent")

	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNotBuilt is returned when the source reports that its graph changed
	// since it was last built.
	ErrNotBuilt = errors.New("Please build the stack first")
)

// State is the submission state of a session.
type State int

const (
	StateIdle State = iota
	StateSending
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of a submission that reached the backend, or failed
// on the way. Reply is always the assistant turn that was appended.
type Result struct {
	Reply       Turn
	Logs        []LogEntry
	ExecutionID string

	// Err is the failure behind an error reply.
	Err error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(logger log.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
			s.listeners.setLogger(logger)
		}
	}
}

// WithTimeout bounds each execute call. A timeout becomes an error reply.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithListener registers a listener at construction.
func WithListener(l Listener) Option {
	return func(s *Session) {
		if l != nil {
			s.listeners.add(l)
		}
	}
}

// Session is the conversation attached to one workflow. It allows one
// submission in flight at a time; callers gate their input on State.
type Session struct {
	mu      sync.Mutex
	id      string
	backend Backend
	source  Source
	logger  log.Logger
	timeout time.Duration

	workflowID    int64
	turns         []Turn
	logs          []LogEntry
	state         State
	historyLoaded bool

	// epoch changes whenever turns are reset, so a reply that arrives after
	// a clear or a workflow switch is dropped instead of leaking.
	epoch uint64

	listeners *listenerSet
}

// NewSession creates an idle session that submits the graph from src to
// backend.
func NewSession(backend Backend, src Source, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		backend: backend,
		source:  src,
		logger:  log.GetDefaultLogger(),
		turns:   []Turn{},
	}
	s.listeners = &listenerSet{logger: s.logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// AddListener registers l for session events.
func (s *Session) AddListener(l Listener) {
	s.listeners.add(l)
}

// WorkflowID returns the persisted workflow the session is attached to, or 0.
func (s *Session) WorkflowID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workflowID
}

// State returns the submission state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turns returns a copy of the conversation.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTurns(s.turns)
}

// Logs returns the execution logs of the latest reply that carried any.
func (s *Session) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLogs(s.logs)
}

// Messages returns the conversation as langchaingo messages.
func (s *Session) Messages() []llms.MessageContent {
	turns := s.Turns()
	out := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		role := schema.ChatMessageTypeHuman
		if t.Role == RoleAssistant {
			role = schema.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, t.Content))
	}
	return out
}

// Open attaches the session to workflowID, 0 meaning an unsaved workflow.
// Reopening the workflow the session is already attached to keeps the
// conversation; any other id resets it.
func (s *Session) Open(ctx context.Context, workflowID int64) {
	s.mu.Lock()
	if workflowID == s.workflowID {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.Reset(ctx, workflowID)
}

// Reset attaches the session to workflowID and drops the turns, the logs,
// the history guard and any reply still in flight, even when the id is
// unchanged. Callers use it when the graph behind the session is replaced.
func (s *Session) Reset(ctx context.Context, workflowID int64) {
	s.mu.Lock()
	s.workflowID = workflowID
	s.resetLocked()
	s.mu.Unlock()

	s.listeners.notify(ctx, Event{Type: EventCleared, WorkflowID: workflowID})
}

// Attach gives an unsaved conversation the id its workflow was just created
// with. Turns are kept and, since a new workflow has no stored history, the
// history guard is set. It reports false and changes nothing when the
// session is already attached to a persisted workflow.
func (s *Session) Attach(workflowID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflowID != 0 || workflowID == 0 {
		return false
	}
	s.workflowID = workflowID
	s.historyLoaded = true
	return true
}

func (s *Session) resetLocked() {
	s.turns = []Turn{}
	s.logs = nil
	s.historyLoaded = false
	s.epoch++
}

// Submit sends text as the next user message. The user turn is appended
// before the request goes out; the reply, or an error turn, is appended when
// it returns. The returned error is only set when the message was not sent
// at all: ErrEmptyMessage, ErrBusy, ErrNotBuilt, or the build error of an
// unusable graph.
func (s *Session) Submit(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyMessage
	}

	if b, ok := s.source.(interface{ IsBuilt() bool }); ok && !b.IsBuilt() {
		return Result{}, ErrNotBuilt
	}
	graph := s.source.Snapshot()
	cfg := s.source.ExecutionConfig()
	if err := workflow.ValidateWith(s.source.Registry(), graph, cfg).Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	if s.state == StateSending {
		s.mu.Unlock()
		return Result{}, ErrBusy
	}
	req := ExecuteRequest{
		Workflow:    graph,
		Query:       text,
		Config:      cfg,
		WorkflowID:  s.workflowID,
		ChatHistory: copyTurns(s.turns),
	}
	userTurn := Turn{Role: RoleUser, Content: text}
	s.turns = append(s.turns, userTurn)
	s.state = StateSending
	epoch := s.epoch
	s.mu.Unlock()

	s.listeners.notify(ctx, Event{Type: EventTurnAppended, WorkflowID: req.WorkflowID, Turn: userTurn})
	s.listeners.notify(ctx, Event{Type: EventStateChanged, WorkflowID: req.WorkflowID, State: StateSending})

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.backend.Execute(callCtx, req)

	var result Result
	next := StateIdle
	if err != nil {
		next = StateFailed
		result = Result{Reply: Turn{Role: RoleAssistant, Content: "Error: " + errorText(err)}, Err: err}
		s.logger.Warn("execute workflow %d failed after %s: %v", req.WorkflowID, time.Since(start), err)
	} else {
		result = Result{Reply: Turn{Role: RoleAssistant, Content: resp.Response}, Logs: resp.Logs, ExecutionID: resp.ExecutionID}
		s.logger.Debug("execute workflow %d took %s, %d log entries", req.WorkflowID, time.Since(start), len(resp.Logs))
	}

	s.mu.Lock()
	stale := epoch != s.epoch
	if !stale {
		s.turns = append(s.turns, result.Reply)
		if len(result.Logs) > 0 {
			s.logs = copyLogs(result.Logs)
		}
	}
	s.state = next
	s.mu.Unlock()

	if stale {
		s.logger.Debug("dropping reply for a cleared conversation")
	} else {
		s.listeners.notify(ctx, Event{Type: EventTurnAppended, WorkflowID: req.WorkflowID, Turn: result.Reply, Err: result.Err})
		if len(result.Logs) > 0 {
			s.listeners.notify(ctx, Event{Type: EventLogsReplaced, WorkflowID: req.WorkflowID, Logs: copyLogs(result.Logs)})
		}
	}
	s.listeners.notify(ctx, Event{Type: EventStateChanged, WorkflowID: req.WorkflowID, State: next, Err: result.Err})
	return result, nil
}

func errorText(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return err.Error()
}

// LoadHistory replaces the turns with the stored history of the attached
// workflow, once per activation. Unsaved workflows have no history. A failed
// fetch is logged, leaves the turns as they are and is returned so the
// caller may retry.
func (s *Session) LoadHistory(ctx context.Context) error {
	s.mu.Lock()
	if s.historyLoaded || s.workflowID == 0 {
		s.mu.Unlock()
		return nil
	}
	id := s.workflowID
	epoch := s.epoch
	s.historyLoaded = true
	s.mu.Unlock()

	turns, err := s.backend.History(ctx, id)
	if err != nil {
		s.logger.Warn("load chat history for workflow %d: %v", id, err)
		s.mu.Lock()
		if s.epoch == epoch {
			s.historyLoaded = false
		}
		s.mu.Unlock()
		return fmt.Errorf("load chat history: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	s.turns = copyTurns(turns)
	s.mu.Unlock()

	s.listeners.notify(ctx, Event{Type: EventHistoryLoaded, WorkflowID: id})
	return nil
}

// ClearHistory empties the local turns and logs, then asks the backend to
// purge the stored history. The local clear stands even if the purge fails;
// the failure is logged and returned.
func (s *Session) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	id := s.workflowID
	s.turns = []Turn{}
	s.logs = nil
	s.epoch++
	s.mu.Unlock()

	s.listeners.notify(ctx, Event{Type: EventCleared, WorkflowID: id})

	if id == 0 {
		return nil
	}
	if err := s.backend.ClearHistory(ctx, id); err != nil {
		s.logger.Warn("clear chat history for workflow %d: %v", id, err)
		return fmt.Errorf("clear chat history: %w", err)
	}
	return nil
}
