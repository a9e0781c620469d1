package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/resonancelabs/resonance-service/internal/model"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoteActiveToThreadByConversations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.storeMemory(t, "cross conversation fact", false, 1, 0, 0).Memory
	_, err := env.store.TouchAccess(ctx, m.ID, "conv-1")
	require.NoError(t, err)
	_, err = env.store.TouchAccess(ctx, m.ID, "conv-2")
	require.NoError(t, err)

	tr, err := env.tiers.Evaluate(ctx, m.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierActive, tr.Previous)
	assert.Equal(t, model.TierThread, tr.New)
	assert.Equal(t, TriggerCrossConversation, tr.Trigger)
}

func TestPromoteActiveToThreadByPhi(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.storeMemory(t, "resonant fact", false, 1, 0, 0).Memory
	_, err := env.store.BoostPhi(ctx, m.ID, env.settings.PhiMid)
	require.NoError(t, err)

	tr, err := env.tiers.Evaluate(ctx, m.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierThread, tr.New)
	assert.Equal(t, TriggerPhiMid, tr.Trigger)
}

func TestPromoteThreadToStableCatalyst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.storeMemory(t, "breakthrough", true, 1, 0, 0).Memory
	require.NoError(t, env.store.SetTier(ctx, m.ID, model.TierThread))

	tr, err := env.tiers.Evaluate(ctx, m.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierStable, tr.New)
	assert.Equal(t, TriggerCatalyst, tr.Trigger)
}

func TestPromoteThreadToStableByPhi(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.storeMemory(t, "sustained fact", false, 1, 0, 0).Memory
	require.NoError(t, env.store.SetTier(ctx, m.ID, model.TierThread))
	_, err := env.store.BoostPhi(ctx, m.ID, env.settings.PhiHigh)
	require.NoError(t, err)
	_, err = env.store.TouchAccess(ctx, m.ID, "")
	require.NoError(t, err)

	tr, err := env.tiers.Evaluate(ctx, m.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierStable, tr.New)
	assert.Equal(t, TriggerPhiHigh, tr.Trigger)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.storeMemory(t, "stable fact", false, 1, 0, 0).Memory
	require.NoError(t, env.store.SetTier(ctx, m.ID, model.TierStable))

	for i := 0; i < 3; i++ {
		tr, err := env.tiers.Evaluate(ctx, m.ID, env.settings)
		require.NoError(t, err)
		assert.Equal(t, model.TierStable, tr.New)
		assert.Empty(t, tr.Trigger)
	}
}

func TestEvaluateNoOpReturnsUnchangedTier(t *testing.T) {
	env := newTestEnv(t)

	m := env.storeMemory(t, "quiet fact", false, 1, 0, 0).Memory
	tr, err := env.tiers.Evaluate(context.Background(), m.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierActive, tr.Previous)
	assert.Equal(t, model.TierActive, tr.New)
	assert.Empty(t, tr.Trigger)
}

func TestPromoteStableToNetworkBridgingHub(t *testing.T) {
	env := newTestEnv(t)
	env.settings.HubMinDegree = 3
	env.settings.HubMinStrength = 2.5
	ctx := context.Background()

	hub := env.storeMemory(t, "hub fact", false, 1, 0, 0).Memory
	n1 := env.storeMemory(t, "spoke one", false, 0, 1, 0).Memory
	n2 := env.storeMemory(t, "spoke two", false, 0, 0, 1).Memory
	n3 := env.storeMemory(t, "spoke three", false, 1, 1, 0).Memory

	require.NoError(t, env.store.SetTier(ctx, hub.ID, model.TierStable))
	for _, n := range []uuid.UUID{n1.ID, n2.ID, n3.ID} {
		_, err := env.store.StrengthenAssociation(ctx, hub.ID, n, model.AssociationContextCoOccurrence)
		require.NoError(t, err)
	}

	// Degree 3, strength sum 3.0, and no spoke-to-spoke edges: the hub
	// bridges every neighbor pair.
	tr, err := env.tiers.Evaluate(ctx, hub.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierNetwork, tr.New)
	assert.Equal(t, TriggerHubBridge, tr.Trigger)
}

func TestStableStaysWithoutBridging(t *testing.T) {
	env := newTestEnv(t)
	env.settings.HubMinDegree = 2
	env.settings.HubMinStrength = 1.5
	ctx := context.Background()

	hub := env.storeMemory(t, "hub fact", false, 1, 0, 0).Memory
	n1 := env.storeMemory(t, "spoke one", false, 0, 1, 0).Memory
	n2 := env.storeMemory(t, "spoke two", false, 0, 0, 1).Memory

	require.NoError(t, env.store.SetTier(ctx, hub.ID, model.TierStable))
	for _, pair := range [][2]uuid.UUID{{hub.ID, n1.ID}, {hub.ID, n2.ID}, {n1.ID, n2.ID}} {
		_, err := env.store.StrengthenAssociation(ctx, pair[0], pair[1], model.AssociationContextCoOccurrence)
		require.NoError(t, err)
	}

	// Neighborhood is fully connected; the hub bridges nothing.
	tr, err := env.tiers.Evaluate(ctx, hub.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierStable, tr.New)
}

func TestOverrideSetsTierWithReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.storeMemory(t, "pinned fact", false, 1, 0, 0).Memory
	tr, err := env.tiers.Override(ctx, m.ID, model.TierStable, "operator pinned")
	require.NoError(t, err)
	assert.Equal(t, model.TierActive, tr.Previous)
	assert.Equal(t, model.TierStable, tr.New)
	assert.Equal(t, TriggerManualOverride, tr.Trigger)

	got, err := env.store.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.TierOverridden)
	assert.Equal(t, "operator pinned", got.TierOverrideReason)
}

func TestStickyOverrideBlocksAutomaticEvaluation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.storeMemory(t, "pinned fact", false, 1, 0, 0).Memory
	_, err := env.store.BoostPhi(ctx, m.ID, env.settings.PhiMid)
	require.NoError(t, err)
	_, err = env.tiers.Override(ctx, m.ID, model.TierActive, "keep active")
	require.NoError(t, err)

	tr, err := env.tiers.Evaluate(ctx, m.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierActive, tr.New)

	env.settings.OverrideSticky = false
	tr, err = env.tiers.Evaluate(ctx, m.ID, env.settings)
	require.NoError(t, err)
	assert.Equal(t, model.TierThread, tr.New)
}

func TestOverrideInvalidTier(t *testing.T) {
	env := newTestEnv(t)

	m := env.storeMemory(t, "fact", false, 1, 0, 0).Memory
	_, err := env.tiers.Override(context.Background(), m.ID, model.Tier("cosmic"), "nope")
	var ite *registrystore.InvalidTierError
	assert.ErrorAs(t, err, &ite)
}

func TestEvaluateUnknownMemory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tiers.Evaluate(context.Background(), uuid.New(), env.settings)
	var nf *registrystore.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
