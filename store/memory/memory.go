// Package memory keeps drafts in process memory. Drafts are lost on exit,
// which suits tests and short-lived tools.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/smallnest/genaistack/store"
)

// MemoryDraftStore implements store.DraftStore with a map.
type MemoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[string]*store.Draft
}

var _ store.DraftStore = (*MemoryDraftStore)(nil)

// NewMemoryDraftStore creates an empty store.
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string]*store.Draft)}
}

func clone(d *store.Draft) *store.Draft {
	cp := *d
	cp.Definition = d.Definition.Copy()
	return &cp
}

// Save stores a copy of draft.
func (m *MemoryDraftStore) Save(_ context.Context, draft *store.Draft) error {
	if draft == nil || draft.ID == "" {
		return fmt.Errorf("draft id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draft.ID] = clone(draft)
	return nil
}

// Load returns a copy of the draft.
func (m *MemoryDraftStore) Load(_ context.Context, draftID string) (*store.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrDraftNotFound, draftID)
	}
	return clone(d), nil
}

// List returns the drafts of workflowID, oldest first.
func (m *MemoryDraftStore) List(_ context.Context, workflowID int64) ([]*store.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*store.Draft
	for _, d := range m.drafts {
		if d.WorkflowID == workflowID {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SavedAt.Before(out[j].SavedAt)
	})
	return out, nil
}

// Delete removes a draft. Removing an absent id is not an error.
func (m *MemoryDraftStore) Delete(_ context.Context, draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, draftID)
	return nil
}

// Clear removes every draft of workflowID.
func (m *MemoryDraftStore) Clear(_ context.Context, workflowID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.drafts {
		if d.WorkflowID == workflowID {
			delete(m.drafts, id)
		}
	}
	return nil
}
