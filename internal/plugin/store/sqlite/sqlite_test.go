package sqlite

import (
	"context"
	"testing"

	"github.com/resonancelabs/resonance-service/internal/engine"
	"github.com/resonancelabs/resonance-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T, content string) *model.Memory {
	t.Helper()
	return &model.Memory{
		Content:     content,
		ContentHash: engine.ContentHash(content),
		Tier:        model.TierActive,
	}
}

func TestTouchAccessConversationRoundTrip(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	ctx := context.Background()

	m := newMemory(t, "conversation bookkeeping survives reload")
	require.NoError(t, store.CreateMemory(ctx, m))

	touched, err := store.TouchAccess(ctx, m.ID, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-1"}, touched.AccessedInConversations)

	// The stored row must deserialize on a fresh read, not just in the
	// returned copy.
	got, err := store.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-1"}, got.AccessedInConversations)
	assert.EqualValues(t, 1, got.AccessCount)
	require.NotNil(t, got.LastAccessedAt)

	// A second conversation appends; a repeat does not duplicate.
	_, err = store.TouchAccess(ctx, m.ID, "conv-2")
	require.NoError(t, err)
	_, err = store.TouchAccess(ctx, m.ID, "conv-2")
	require.NoError(t, err)

	got, err = store.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"conv-1", "conv-2"}, got.AccessedInConversations)
	assert.EqualValues(t, 3, got.AccessCount)
}

func TestTouchAccessWithoutConversationKeepsRowReadable(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	ctx := context.Background()

	m := newMemory(t, "anonymous access")
	require.NoError(t, store.CreateMemory(ctx, m))

	_, err = store.TouchAccess(ctx, m.ID, "")
	require.NoError(t, err)

	got, err := store.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AccessedInConversations)
	assert.EqualValues(t, 1, got.AccessCount)
}

func TestStrengthenAssociationReturnsStoredStrength(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	ctx := context.Background()

	a := newMemory(t, "edge endpoint a")
	b := newMemory(t, "edge endpoint b")
	require.NoError(t, store.CreateMemory(ctx, a))
	require.NoError(t, store.CreateMemory(ctx, b))

	// The returned edge must reflect the committed row on every call, first
	// pairing and repeat alike.
	edge, err := store.StrengthenAssociation(ctx, a.ID, b.ID, model.AssociationContextCoOccurrence)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, edge.Strength, 1e-9)

	edge, err = store.StrengthenAssociation(ctx, a.ID, b.ID, model.AssociationContextCoOccurrence)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, edge.Strength, 1e-9)

	neighbors, err := store.Neighbors(ctx, a.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.InDelta(t, 1.5, neighbors[0].Strength, 1e-9)
}
