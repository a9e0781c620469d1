package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/resonancelabs/resonance-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeHub stores content and boosts it to hub-grade resonance.
func (e *testEnv) makeHub(t *testing.T, content string, vec ...float32) *model.Memory {
	t.Helper()
	m := e.storeMemory(t, content, false, vec...).Memory
	_, err := e.store.BoostPhi(context.Background(), m.ID, e.settings.HubPhiMin+0.2)
	require.NoError(t, err)
	return m
}

func (e *testEnv) graphSnapshot(t *testing.T) (int64, int64) {
	t.Helper()
	stats, err := e.store.GraphStats(context.Background(), 1)
	require.NoError(t, err)
	return stats.Memories, stats.Edges
}

func TestFoldInsufficientHubs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.makeHub(t, "lone hub", 1, 0, 0)
	env.storeMemory(t, "ordinary memory", false, 0, 1, 0)
	memories, edges := env.graphSnapshot(t)

	result, err := env.fold.RunCycle(ctx, env.settings)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientHubs, result.Outcome)

	// A skipped cycle mutates nothing.
	m2, e2 := env.graphSnapshot(t)
	assert.Equal(t, memories, m2)
	assert.Equal(t, edges, e2)
	assert.Equal(t, 0, env.generator.calls)
}

func TestFoldInsufficientDiversity(t *testing.T) {
	env := newTestEnv(t)

	// Two hubs at cosine distance 0.1, under the 0.3 floor but distinct
	// enough to dodge near-duplicate consolidation.
	env.makeHub(t, "hub one", 1, 0, 0)
	env.makeHub(t, "hub two", 0.9, 0.4359, 0)

	result, err := env.fold.RunCycle(context.Background(), env.settings)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientDiversity, result.Outcome)
}

func TestFoldNoAnchor(t *testing.T) {
	env := newTestEnv(t)

	env.makeHub(t, "hub one", 1, 0, 0)
	env.makeHub(t, "hub two", 0, 1, 0)

	// The hubs themselves are the only low-access rows and are excluded.
	result, err := env.fold.RunCycle(context.Background(), env.settings)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoAnchor, result.Outcome)
}

func TestFoldConsonanceRejection(t *testing.T) {
	env := newTestEnv(t)

	// Hub similarity 0.2, anchor similarities ~0.45 / ~0.43: harmonic mean
	// ~0.31, below the 0.40 floor.
	env.makeHub(t, "hub one", 1, 0, 0)
	env.makeHub(t, "hub two", 0.2, 0.9798, 0)
	env.storeMemory(t, "latent anchor", false, 0.45, 0.35, 0.8216)

	result, err := env.fold.RunCycle(context.Background(), env.settings)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCoherenceTooLow, result.Outcome)
	assert.Equal(t, GateConsonance, result.Gate)
	assert.Less(t, result.Consonance, env.settings.MinConsonance)
	assert.Len(t, result.AncestorIDs, 3)
	assert.Equal(t, 0, env.generator.calls)
}

func TestFoldCoherenceScoreRejection(t *testing.T) {
	env := newTestEnv(t)
	// A passing triple, but with the score floor raised past its S_cs.
	env.settings.MinCoherenceScore = 1000

	env.makeHub(t, "hub one", 1, 0, 0)
	env.makeHub(t, "hub two", 0.3, 0.954, 0)
	env.storeMemory(t, "latent anchor", false, 0.6, 0.3354, 0.7263)

	memories, edges := env.graphSnapshot(t)
	result, err := env.fold.RunCycle(context.Background(), env.settings)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCoherenceTooLow, result.Outcome)
	assert.Equal(t, GateCoherenceScore, result.Gate)
	assert.Greater(t, result.Consonance, env.settings.MinConsonance)

	m2, e2 := env.graphSnapshot(t)
	assert.Equal(t, memories, m2)
	assert.Equal(t, edges, e2)
	assert.Equal(t, 0, env.generator.calls)
}

func TestFoldManifests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hubA := env.makeHub(t, "hub one", 1, 0, 0)
	hubB := env.makeHub(t, "hub two", 0.3, 0.954, 0)
	anchor := env.storeMemory(t, "latent anchor", false, 0.6, 0.3354, 0.7263).Memory
	env.embedder.set(env.generator.text, 0, 0, 1)

	result, err := env.fold.RunCycle(ctx, env.settings)
	require.NoError(t, err)
	require.Equal(t, OutcomeManifested, result.Outcome)
	require.NotNil(t, result.MemoryID)
	assert.ElementsMatch(t, []string{hubA.ID.String(), hubB.ID.String(), anchor.ID.String()},
		[]string{result.AncestorIDs[0].String(), result.AncestorIDs[1].String(), result.AncestorIDs[2].String()})

	m, err := env.store.GetMemory(ctx, *result.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryFold, m.Category)
	assert.Equal(t, env.generator.text, m.Content)
	assert.Equal(t, env.settings.SynthesisPhi, m.ResonancePhi)

	ancestorIDs, ok := m.Metadata["ancestorIds"].([]interface{})
	require.True(t, ok)
	assert.Len(t, ancestorIDs, 3)
	assert.EqualValues(t, 1, m.Metadata["foldGeneration"])

	// Three synthetic edges at the seeded strength.
	neighbors, err := env.store.Neighbors(ctx, m.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 3)
	for _, n := range neighbors {
		assert.Equal(t, env.settings.SyntheticStrength, n.Strength)
		assert.Equal(t, model.AssociationContextSynthesis, n.Context)
	}

	// The synthesis is indexed for future search.
	vec, err := env.vector.GetEmbedding(ctx, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, vec)
}

func TestFoldEvolvesIntoExistingMemory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.makeHub(t, "hub one", 1, 0, 0)
	env.makeHub(t, "hub two", 0.3, 0.954, 0)
	anchor := env.storeMemory(t, "latent anchor", false, 0.6, 0.3354, 0.7263).Memory
	// The synthesis lands exactly on the anchor's embedding.
	env.embedder.set(env.generator.text, 0.6, 0.3354, 0.7263)

	memories, _ := env.graphSnapshot(t)
	result, err := env.fold.RunCycle(ctx, env.settings)
	require.NoError(t, err)
	require.Equal(t, OutcomeEvolved, result.Outcome)
	require.NotNil(t, result.MemoryID)
	assert.Equal(t, anchor.ID, *result.MemoryID)

	// Evolution strengthens the existing memory instead of inserting.
	m2, _ := env.graphSnapshot(t)
	assert.Equal(t, memories, m2)
	got, err := env.store.GetMemory(ctx, anchor.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got.ResonancePhi, 1e-9)
}

func TestFoldGeneratorFailureAbandonsCycle(t *testing.T) {
	env := newTestEnv(t)
	env.generator.err = errors.New("provider down")

	env.makeHub(t, "hub one", 1, 0, 0)
	env.makeHub(t, "hub two", 0.3, 0.954, 0)
	env.storeMemory(t, "latent anchor", false, 0.6, 0.3354, 0.7263)

	memories, edges := env.graphSnapshot(t)
	_, err := env.fold.RunCycle(context.Background(), env.settings)
	require.Error(t, err)

	// An abandoned cycle leaves no partial state.
	m2, e2 := env.graphSnapshot(t)
	assert.Equal(t, memories, m2)
	assert.Equal(t, edges, e2)
}
