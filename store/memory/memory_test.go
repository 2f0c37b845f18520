package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/genaistack/store"
	"github.com/smallnest/genaistack/workflow"
)

func sampleGraph() workflow.Graph {
	return workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "node_0", Kind: workflow.KindQueryIntake, Data: &workflow.QueryIntakeData{Label: "User Query"}},
			{ID: "node_1", Kind: workflow.KindOutput, Data: &workflow.OutputData{Label: "Output"}},
		},
		Edges: []workflow.Edge{
			{ID: "e0", Source: "node_0", SourcePort: workflow.PortQuery, Target: "node_1", TargetPort: workflow.PortQuery},
		},
	}
}

func TestMemoryDraftStore_SaveLoad(t *testing.T) {
	t.Parallel()

	ms := NewMemoryDraftStore()
	ctx := context.Background()

	d := store.NewDraft(7, "Support bot", sampleGraph())
	require.NoError(t, ms.Save(ctx, d))

	loaded, err := ms.Load(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Name, loaded.Name)
	assert.Equal(t, int64(7), loaded.WorkflowID)
	assert.Len(t, loaded.Definition.Nodes, 2)

	// The stored copy is detached from the caller's.
	d.Definition.Nodes[0].Data.(*workflow.QueryIntakeData).Label = "changed"
	again, err := ms.Load(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "User Query", again.Definition.Nodes[0].Label())
}

func TestMemoryDraftStore_LoadMissing(t *testing.T) {
	t.Parallel()

	_, err := NewMemoryDraftStore().Load(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrDraftNotFound)
}

func TestMemoryDraftStore_ListOrder(t *testing.T) {
	t.Parallel()

	ms := NewMemoryDraftStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	later := store.NewDraft(3, "b", sampleGraph())
	later.SavedAt = base.Add(time.Minute)
	earlier := store.NewDraft(3, "a", sampleGraph())
	earlier.SavedAt = base
	other := store.NewDraft(4, "c", sampleGraph())

	for _, d := range []*store.Draft{later, earlier, other} {
		require.NoError(t, ms.Save(ctx, d))
	}

	list, err := ms.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)
}

func TestMemoryDraftStore_DeleteAndClear(t *testing.T) {
	t.Parallel()

	ms := NewMemoryDraftStore()
	ctx := context.Background()

	a := store.NewDraft(0, "a", sampleGraph())
	b := store.NewDraft(0, "b", sampleGraph())
	c := store.NewDraft(9, "c", sampleGraph())
	for _, d := range []*store.Draft{a, b, c} {
		require.NoError(t, ms.Save(ctx, d))
	}

	require.NoError(t, ms.Delete(ctx, a.ID))
	require.NoError(t, ms.Delete(ctx, a.ID))
	list, _ := ms.List(ctx, 0)
	assert.Len(t, list, 1)

	require.NoError(t, ms.Clear(ctx, 0))
	list, _ = ms.List(ctx, 0)
	assert.Empty(t, list)

	list, _ = ms.List(ctx, 9)
	assert.Len(t, list, 1)
}

func TestMemoryDraftStore_RejectsMissingID(t *testing.T) {
	t.Parallel()

	err := NewMemoryDraftStore().Save(context.Background(), &store.Draft{Name: "x"})
	assert.Error(t, err)
}
