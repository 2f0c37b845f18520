package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/genaistack/workflow"
)

// ErrDraftNotFound is returned when loading a draft id that is not stored.
var ErrDraftNotFound = errors.New("draft not found")

// Draft is a local copy of a workflow that has not reached the backend,
// kept so a failed save can be retried later.
type Draft struct {
	ID         string         `json:"id"`
	WorkflowID int64          `json:"workflow_id"`
	Name       string         `json:"name"`
	Definition workflow.Graph `json:"definition"`

	// Note records why the draft was written, typically the save error.
	Note    string    `json:"note,omitempty"`
	SavedAt time.Time `json:"saved_at"`
	Version int       `json:"version"`
}

// NewDraft returns a version 1 draft with a fresh id.
func NewDraft(workflowID int64, name string, def workflow.Graph) *Draft {
	return &Draft{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Name:       name,
		Definition: def.Copy(),
		SavedAt:    time.Now().UTC(),
		Version:    1,
	}
}

// DraftStore defines the interface for draft persistence.
type DraftStore interface {
	// Save stores a draft, replacing one with the same id.
	Save(ctx context.Context, draft *Draft) error

	// Load retrieves a draft by id.
	Load(ctx context.Context, draftID string) (*Draft, error)

	// List returns the drafts of a workflow, oldest first. Workflow id 0
	// holds drafts of workflows never saved.
	List(ctx context.Context, workflowID int64) ([]*Draft, error)

	// Delete removes a draft.
	Delete(ctx context.Context, draftID string) error

	// Clear removes every draft of a workflow.
	Clear(ctx context.Context, workflowID int64) error
}
