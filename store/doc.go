// Package store keeps local drafts of workflow definitions.
//
// A draft is written when saving to the backend fails, so the graph a user
// built is not lost with the process. Implementations live in subpackages:
//   - memory: process-local map, for tests and one-shot tools
//   - sqlite: a single file next to the user's configuration
//   - redis: shared between machines, with optional expiry
//   - postgres: a table in an existing database
//
// All of them satisfy DraftStore:
//
//	type DraftStore interface {
//	    Save(ctx context.Context, draft *Draft) error
//	    Load(ctx context.Context, draftID string) (*Draft, error)
//	    List(ctx context.Context, workflowID int64) ([]*Draft, error)
//	    Delete(ctx context.Context, draftID string) error
//	    Clear(ctx context.Context, workflowID int64) error
//	}
//
// Loading an unknown id returns an error wrapping ErrDraftNotFound.
package store
