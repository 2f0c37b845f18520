package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/smallnest/genaistack/chat"
	"github.com/smallnest/genaistack/client"
	"github.com/smallnest/genaistack/log"
	"github.com/smallnest/genaistack/store"
	"github.com/smallnest/genaistack/workflow"
)

// DefaultName is the name of a workflow that was never renamed.
const DefaultName = "Untitled Stack"

var (
	// ErrNotBuilt is returned when chat is opened, or a message submitted,
	// before the current graph passed a build.
	ErrNotBuilt = chat.ErrNotBuilt

	// ErrEmptyWorkflow is returned when saving a graph without nodes.
	ErrEmptyWorkflow = errors.New("Please add some components before saving")
)

// Uploader sends a document to the backend. *client.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader, opts client.UploadOptions) (client.Document, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithDrafts keeps a local draft whenever a save fails.
func WithDrafts(drafts store.DraftStore) Option {
	return func(b *Builder) {
		b.drafts = drafts
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDefaults sets the session-wide credentials used when the llm-engine
// node carries none.
func WithDefaults(defaults workflow.SessionDefaults) Option {
	return func(b *Builder) {
		b.defaults = defaults
	}
}

// WithStoreOptions configures the underlying GraphStore.
func WithStoreOptions(opts ...workflow.StoreOption) Option {
	return func(b *Builder) {
		b.storeOpts = append(b.storeOpts, opts...)
	}
}

// WithSessionOptions configures the chat session created by OpenChat.
func WithSessionOptions(opts ...chat.Option) Option {
	return func(b *Builder) {
		b.sessionOpts = append(b.sessionOpts, opts...)
	}
}

// Builder is one editing session: the graph being edited, its name and
// backend id, the build state and the chat attached to it.
type Builder struct {
	mu sync.Mutex

	graph   *workflow.GraphStore
	gateway workflow.Gateway
	backend chat.Backend
	drafts  store.DraftStore
	logger  log.Logger

	storeOpts   []workflow.StoreOption
	sessionOpts []chat.Option

	id          int64
	name        string
	description string
	defaults    workflow.SessionDefaults

	// built is only meaningful while the graph revision still equals
	// builtRevision.
	built         bool
	builtRevision uint64

	draftID      string
	draftVersion int

	session *chat.Session
}

var _ chat.Source = (*Builder)(nil)

// New returns a builder with an empty graph named DefaultName.
func New(gateway workflow.Gateway, backend chat.Backend, opts ...Option) *Builder {
	b := &Builder{
		gateway: gateway,
		backend: backend,
		logger:  log.GetDefaultLogger(),
		name:    DefaultName,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.graph = workflow.NewGraphStore(b.storeOpts...)
	return b
}

// Graph returns the store edits go through.
func (b *Builder) Graph() *workflow.GraphStore {
	return b.graph
}

// ID returns the backend id, 0 until the first successful save.
func (b *Builder) ID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

// Name returns the workflow name.
func (b *Builder) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// SetName renames the workflow. A blank name falls back to DefaultName.
func (b *Builder) SetName(name string) {
	if name == "" {
		name = DefaultName
	}
	b.mu.Lock()
	b.name = name
	b.mu.Unlock()
}

// SetDescription sets the description sent on save.
func (b *Builder) SetDescription(desc string) {
	b.mu.Lock()
	b.description = desc
	b.mu.Unlock()
}

// SetDefaults replaces the session credentials. The graph must be built
// again afterwards.
func (b *Builder) SetDefaults(defaults workflow.SessionDefaults) {
	b.mu.Lock()
	b.defaults = defaults
	b.built = false
	b.mu.Unlock()
}

// Snapshot returns a copy of the current graph.
func (b *Builder) Snapshot() workflow.Graph {
	return b.graph.Snapshot()
}

// ExecutionConfig resolves the credentials for the current graph.
func (b *Builder) ExecutionConfig() workflow.ExecutionConfig {
	b.mu.Lock()
	defaults := b.defaults
	b.mu.Unlock()
	return workflow.Resolve(b.graph.Snapshot(), defaults)
}

// Registry returns the kind registry the graph is validated against.
func (b *Builder) Registry() *workflow.Registry {
	return b.graph.Registry()
}

// Build validates the current graph. A valid verdict unlocks OpenChat until
// the graph is edited again.
func (b *Builder) Build() workflow.Verdict {
	rev := b.graph.Revision()
	g := b.graph.Snapshot()

	b.mu.Lock()
	defer b.mu.Unlock()

	v := workflow.ValidateWith(b.graph.Registry(), g, workflow.Resolve(g, b.defaults))
	for _, w := range v.Warnings {
		b.logger.Info("build %q: %s", b.name, w)
	}
	if !v.Valid {
		b.built = false
		b.logger.Debug("build %q rejected: %s", b.name, v.Reason)
		return v
	}
	b.built = true
	b.builtRevision = rev
	return v
}

// IsBuilt reports whether the graph passed Build and has not changed since.
func (b *Builder) IsBuilt() bool {
	rev := b.graph.Revision()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.built && b.builtRevision == rev
}

// Save creates the workflow on the first call and updates it afterwards.
// When the gateway fails the graph is kept as is and, if a draft store is
// configured, written there.
func (b *Builder) Save(ctx context.Context) (workflow.Record, error) {
	g := b.graph.Snapshot()
	if g.IsEmpty() {
		return workflow.Record{}, ErrEmptyWorkflow
	}

	b.mu.Lock()
	rec := workflow.Record{ID: b.id, Name: b.name, Description: b.description, Definition: g}
	b.mu.Unlock()

	var (
		saved workflow.Record
		err   error
	)
	if rec.Persisted() {
		saved, err = b.gateway.Update(ctx, rec.ID, rec)
	} else {
		saved, err = b.gateway.Create(ctx, rec)
	}
	if err != nil {
		b.keepDraft(ctx, rec, err)
		return workflow.Record{}, fmt.Errorf("save workflow %q: %w", rec.Name, err)
	}

	b.mu.Lock()
	if saved.ID != 0 {
		b.id = saved.ID
	}
	draftID := b.draftID
	b.draftID = ""
	b.draftVersion = 0
	sess := b.session
	b.mu.Unlock()

	// A conversation held before the first save continues under the new id.
	if sess != nil && !rec.Persisted() {
		sess.Attach(saved.ID)
	}

	if draftID != "" && b.drafts != nil {
		if err := b.drafts.Delete(ctx, draftID); err != nil {
			b.logger.Warn("delete draft %s: %v", draftID, err)
		}
	}
	return saved, nil
}

func (b *Builder) keepDraft(ctx context.Context, rec workflow.Record, cause error) {
	if b.drafts == nil {
		return
	}

	d := store.NewDraft(rec.ID, rec.Name, rec.Definition)
	d.Note = cause.Error()

	b.mu.Lock()
	if b.draftID != "" {
		d.ID = b.draftID
		d.Version = b.draftVersion + 1
	}
	b.mu.Unlock()

	if err := b.drafts.Save(ctx, d); err != nil {
		b.logger.Warn("keep draft of %q: %v", rec.Name, err)
		return
	}

	b.mu.Lock()
	b.draftID = d.ID
	b.draftVersion = d.Version
	b.mu.Unlock()
	b.logger.Warn("save of %q failed, kept draft %s: %v", rec.Name, d.ID, cause)
}

// DraftID returns the id of the draft written by the last failed save, or
// "" when there is none.
func (b *Builder) DraftID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draftID
}

// Load replaces the editing state with workflow id from the gateway. A chat
// session handed out earlier is emptied and attached to the loaded workflow.
// On error nothing changes.
func (b *Builder) Load(ctx context.Context, id int64) (workflow.Record, error) {
	rec, err := b.gateway.Get(ctx, id)
	if err != nil {
		return workflow.Record{}, fmt.Errorf("load workflow %d: %w", id, err)
	}
	if err := b.graph.Replace(rec.Definition); err != nil {
		return workflow.Record{}, fmt.Errorf("load workflow %d: %w", id, err)
	}

	b.mu.Lock()
	b.id = rec.ID
	b.name = rec.Name
	if b.name == "" {
		b.name = DefaultName
	}
	b.description = rec.Description
	b.built = false
	b.draftID = ""
	b.draftVersion = 0
	sess := b.session
	b.mu.Unlock()

	if sess != nil {
		sess.Reset(ctx, rec.ID)
	}
	return rec, nil
}

// RestoreDraft replaces the editing state with a locally kept draft. The
// draft stays in the store until the next successful save.
func (b *Builder) RestoreDraft(ctx context.Context, draftID string) (*store.Draft, error) {
	if b.drafts == nil {
		return nil, fmt.Errorf("restore draft %s: no draft store configured", draftID)
	}
	d, err := b.drafts.Load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if err := b.graph.Replace(d.Definition); err != nil {
		return nil, fmt.Errorf("restore draft %s: %w", draftID, err)
	}

	b.mu.Lock()
	b.id = d.WorkflowID
	b.name = d.Name
	b.built = false
	b.draftID = d.ID
	b.draftVersion = d.Version
	sess := b.session
	b.mu.Unlock()

	if sess != nil {
		sess.Reset(ctx, d.WorkflowID)
	}
	return d, nil
}

// Reset starts a new, unsaved workflow. The chat session, if any, is
// emptied and detached from the old workflow.
func (b *Builder) Reset(ctx context.Context) {
	_ = b.graph.Replace(workflow.Graph{})

	b.mu.Lock()
	b.id = 0
	b.name = DefaultName
	b.description = ""
	b.built = false
	b.draftID = ""
	b.draftVersion = 0
	sess := b.session
	b.mu.Unlock()

	if sess != nil {
		sess.Reset(ctx, 0)
	}
}

// OpenChat returns the chat session for the current workflow, creating it
// on first use. Stored history is loaded once per workflow; failing to load
// it leaves the session usable.
func (b *Builder) OpenChat(ctx context.Context) (*chat.Session, error) {
	if !b.IsBuilt() {
		return nil, ErrNotBuilt
	}
	if b.backend == nil {
		return nil, errors.New("no execution backend configured")
	}

	b.mu.Lock()
	if b.session == nil {
		opts := append([]chat.Option{chat.WithLogger(b.logger)}, b.sessionOpts...)
		b.session = chat.NewSession(b.backend, b, opts...)
	}
	sess, id := b.session, b.id
	b.mu.Unlock()

	sess.Open(ctx, id)
	if err := sess.LoadHistory(ctx); err != nil {
		b.logger.Debug("open chat for workflow %d without history: %v", id, err)
	}
	return sess, nil
}

// UploadDocument uploads a file for the knowledge-base node nodeID and
// writes the returned document into the node's data.
func (b *Builder) UploadDocument(ctx context.Context, up Uploader, nodeID, filename string, r io.Reader) (client.Document, error) {
	n, ok := b.graph.Snapshot().Node(nodeID)
	if !ok {
		return client.Document{}, fmt.Errorf("%w: %s", workflow.ErrUnknownNode, nodeID)
	}
	data, ok := n.Data.(*workflow.KnowledgeBaseData)
	if !ok {
		return client.Document{}, fmt.Errorf("node %s is a %s, not a knowledge base", nodeID, n.Kind)
	}

	opts := client.UploadOptions{APIKey: data.APIKey, EmbeddingModel: data.EmbeddingModel}
	if opts.APIKey == "" {
		b.mu.Lock()
		opts.APIKey = b.defaults.ModelAPIKey
		b.mu.Unlock()
	}

	doc, err := up.Upload(ctx, filename, r, opts)
	if err != nil {
		return client.Document{}, fmt.Errorf("upload %s: %w", filename, err)
	}

	updated := data.Copy().(*workflow.KnowledgeBaseData)
	doc.Attach(updated)
	b.graph.UpdateNodeData(nodeID, updated)
	return doc, nil
}
