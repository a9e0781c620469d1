package engine

import (
	"context"
	"testing"

	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreNovelContent(t *testing.T) {
	env := newTestEnv(t)

	result := env.storeMemory(t, "the tides follow the moon", false, 1, 0, 0)
	require.False(t, result.IsDuplicate)
	assert.Equal(t, "active", string(result.Memory.Tier))
	assert.Equal(t, 0.0, result.Memory.ResonancePhi)
	assert.EqualValues(t, 1, result.Memory.AccessCount)

	vec, err := env.vector.GetEmbedding(context.Background(), result.Memory.ID)
	require.NoError(t, err)
	assert.NotNil(t, vec)
}

func TestStoreCatalystSeedsPhi(t *testing.T) {
	env := newTestEnv(t)

	result := env.storeMemory(t, "a breakthrough insight", true, 1, 0, 0)
	assert.True(t, result.Memory.IsCatalyst)
	assert.Equal(t, 1.0, result.Memory.ResonancePhi)
}

func TestStoreExactDuplicate(t *testing.T) {
	env := newTestEnv(t)

	first := env.storeMemory(t, "the tides follow the moon", false, 1, 0, 0)
	second := env.storeMemory(t, "the tides follow the moon", false, 1, 0, 0)

	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)
	assert.EqualValues(t, 2, second.Memory.AccessCount)

	counts, err := env.store.CountMemories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Active)
}

func TestStoreNearDuplicateBoostsExisting(t *testing.T) {
	env := newTestEnv(t)

	first := env.storeMemory(t, "the tides follow the moon", false, 1, 0, 0)
	// Cosine similarity 0.96, at the default threshold's accepting side.
	second := env.storeMemory(t, "tides track the moon", false, 0.96, 0.28, 0)

	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)
	assert.InDelta(t, 0.1, second.Memory.ResonancePhi, 1e-9)
	assert.InDelta(t, 0.96, second.Similarity, 1e-6)

	counts, err := env.store.CountMemories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Active)
}

func TestStoreNearDuplicateCatalystBoost(t *testing.T) {
	env := newTestEnv(t)

	first := env.storeMemory(t, "the tides follow the moon", false, 1, 0, 0)
	second := env.storeMemory(t, "tides track the moon", true, 0.96, 0.28, 0)

	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)
	assert.InDelta(t, 1.0, second.Memory.ResonancePhi, 1e-9)
}

func TestStoreBelowThresholdIsNovel(t *testing.T) {
	env := newTestEnv(t)

	env.storeMemory(t, "the tides follow the moon", false, 1, 0, 0)
	// Similarity 0.9, strictly below the 0.95 threshold.
	second := env.storeMemory(t, "rivers carve canyons", false, 0.9, 0.4359, 0)

	assert.False(t, second.IsDuplicate)

	counts, err := env.store.CountMemories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Active)
}

func TestStoreBoundaryInclusive(t *testing.T) {
	env := newTestEnv(t)

	first := env.storeMemory(t, "the tides follow the moon", false, 1, 0, 0)

	// Pin the threshold to the exact similarity the index will report, so
	// the test exercises the inclusive boundary.
	env.embedder.set("tides and the moon", 0.95, 0.31225, 0)
	env.settings.NearDuplicateThreshold = cosine(
		env.embedder.vectors["the tides follow the moon"],
		env.embedder.vectors["tides and the moon"])

	second, err := env.consolidator.Store(context.Background(), StoreRequest{Content: "tides and the moon"}, env.settings)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.consolidator.Store(context.Background(), StoreRequest{Content: ""}, env.settings)
	var verr *registrystore.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStoreTracksConversations(t *testing.T) {
	env := newTestEnv(t)

	env.embedder.set("shared knowledge", 1, 0, 0)
	first, err := env.consolidator.Store(context.Background(), StoreRequest{Content: "shared knowledge", ConversationID: "conv-1"}, env.settings)
	require.NoError(t, err)
	second, err := env.consolidator.Store(context.Background(), StoreRequest{Content: "shared knowledge", ConversationID: "conv-2"}, env.settings)
	require.NoError(t, err)

	assert.Equal(t, first.Memory.ID, second.Memory.ID)
	assert.ElementsMatch(t, []string{"conv-1", "conv-2"}, second.Memory.AccessedInConversations)
}
