package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/genaistack/store"
	"github.com/smallnest/genaistack/workflow"
)

func definition() workflow.Graph {
	return workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "node_0", Kind: workflow.KindQueryIntake, Data: &workflow.QueryIntakeData{Label: "User Query"}},
			{ID: "node_1", Kind: workflow.KindKnowledgeBase, Data: &workflow.KnowledgeBaseData{Label: "Docs", Filename: "handbook.pdf"}},
		},
		Edges: []workflow.Edge{},
	}
}

func TestRedisDraftStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := NewRedisDraftStore(RedisOptions{Addr: mr.Addr()})
	defer s.Close()
	ctx := context.Background()

	d := store.NewDraft(42, "Handbook QA", definition())
	require.NoError(t, s.Save(ctx, d))
	assert.True(t, mr.Exists("stack:draft:"+d.ID))
	ok, err := mr.IsMember("stack:workflow:42:drafts", d.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := s.Load(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Handbook QA", loaded.Name)
	kb, ok := loaded.Definition.Nodes[1].Data.(*workflow.KnowledgeBaseData)
	require.True(t, ok)
	assert.Equal(t, "handbook.pdf", kb.Filename)

	list, err := s.List(ctx, 42)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, d.ID, list[0].ID)

	require.NoError(t, s.Delete(ctx, d.ID))
	_, err = s.Load(ctx, d.ID)
	assert.ErrorIs(t, err, store.ErrDraftNotFound)

	list, err = s.List(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, list)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete(ctx, d.ID))
}

func TestRedisDraftStore_ListOrderAndClear(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := NewRedisDraftStore(RedisOptions{Addr: mr.Addr(), Prefix: "test:"})
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	second := store.NewDraft(0, "second", definition())
	second.SavedAt = base.Add(time.Hour)
	first := store.NewDraft(0, "first", definition())
	first.SavedAt = base
	require.NoError(t, s.Save(ctx, second))
	require.NoError(t, s.Save(ctx, first))

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "second", list[1].Name)

	require.NoError(t, s.Clear(ctx, 0))
	list, err = s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.False(t, mr.Exists("test:workflow:0:drafts"))
}

func TestRedisDraftStore_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := NewRedisDraftStore(RedisOptions{Addr: mr.Addr(), TTL: time.Minute})
	ctx := context.Background()

	d := store.NewDraft(1, "short lived", definition())
	require.NoError(t, s.Save(ctx, d))
	assert.Equal(t, time.Minute, mr.TTL("stack:draft:"+d.ID))

	mr.FastForward(2 * time.Minute)
	_, err = s.Load(ctx, d.ID)
	assert.ErrorIs(t, err, store.ErrDraftNotFound)
}
