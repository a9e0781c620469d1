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

func TestStrengthenAssociationSymmetric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.storeMemory(t, "first", false, 1, 0, 0).Memory
	b := env.storeMemory(t, "second", false, 0, 1, 0).Memory

	e1, err := env.store.StrengthenAssociation(ctx, a.ID, b.ID, model.AssociationContextCoOccurrence)
	require.NoError(t, err)
	assert.Equal(t, 1.0, e1.Strength)

	// Reversed order must strengthen the same row, never create a second.
	e2, err := env.store.StrengthenAssociation(ctx, b.ID, a.ID, model.AssociationContextCoOccurrence)
	require.NoError(t, err)
	assert.Equal(t, e1.MemoryAID, e2.MemoryAID)
	assert.Equal(t, e1.MemoryBID, e2.MemoryBID)
	assert.InDelta(t, 1.5, e2.Strength, 1e-9)

	stats, err := env.store.GraphStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Edges)
}

func TestStrengtheningIsSubLinear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.storeMemory(t, "first", false, 1, 0, 0).Memory
	b := env.storeMemory(t, "second", false, 0, 1, 0).Memory

	var prev, prevGain float64
	for i := 0; i < 5; i++ {
		edge, err := env.store.StrengthenAssociation(ctx, a.ID, b.ID, model.AssociationContextCoOccurrence)
		require.NoError(t, err)
		gain := edge.Strength - prev
		if i > 0 {
			assert.Less(t, gain, prevGain, "marginal gain must shrink")
		}
		prev = edge.Strength
		prevGain = gain
	}
}

func TestSelfAssociationRejected(t *testing.T) {
	env := newTestEnv(t)

	a := env.storeMemory(t, "first", false, 1, 0, 0).Memory
	_, err := env.store.StrengthenAssociation(context.Background(), a.ID, a.ID, model.AssociationContextCoOccurrence)
	var verr *registrystore.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRecordCoOccurrenceHonorsFloor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.storeMemory(t, "first", false, 1, 0, 0).Memory
	b := env.storeMemory(t, "second", false, 0, 1, 0).Memory
	c := env.storeMemory(t, "third", false, 0, 0, 1).Memory

	results := []ScoredMemory{
		{Memory: a, Similarity: 0.8},
		{Memory: b, Similarity: 0.7},
		{Memory: c, Similarity: 0.2}, // below the floor, excluded
	}
	require.NoError(t, env.associator.RecordCoOccurrence(ctx, results, 0.5))

	stats, err := env.store.GraphStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Edges)

	neighbors, err := env.associator.Neighbors(ctx, a.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, b.ID, neighbors[0].Memory.ID)
}

func TestNeighborsOrderedByStrength(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.storeMemory(t, "first", false, 1, 0, 0).Memory
	b := env.storeMemory(t, "second", false, 0, 1, 0).Memory
	c := env.storeMemory(t, "third", false, 0, 0, 1).Memory

	_, err := env.store.StrengthenAssociation(ctx, a.ID, b.ID, model.AssociationContextCoOccurrence)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = env.store.StrengthenAssociation(ctx, a.ID, c.ID, model.AssociationContextCoOccurrence)
		require.NoError(t, err)
	}

	neighbors, err := env.associator.Neighbors(ctx, a.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, c.ID, neighbors[0].Memory.ID)
	assert.Equal(t, b.ID, neighbors[1].Memory.ID)

	// Min-strength filter drops the weaker edge.
	strong, err := env.associator.Neighbors(ctx, a.ID, 1.5, 10)
	require.NoError(t, err)
	require.Len(t, strong, 1)
	assert.Equal(t, c.ID, strong[0].Memory.ID)
}

func TestNeighborsUnknownMemory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.associator.Neighbors(context.Background(), uuid.New(), 0, 10)
	var nf *registrystore.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestGraphStatsDensity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.storeMemory(t, "first", false, 1, 0, 0).Memory
	b := env.storeMemory(t, "second", false, 0, 1, 0).Memory
	env.storeMemory(t, "third", false, 0, 0, 1)

	_, err := env.store.StrengthenAssociation(ctx, a.ID, b.ID, model.AssociationContextCoOccurrence)
	require.NoError(t, err)

	stats, err := env.associator.Stats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Memories)
	assert.Equal(t, int64(1), stats.Edges)
	// One edge of three possible.
	assert.InDelta(t, 1.0/3.0, stats.Density, 1e-9)
	require.NotEmpty(t, stats.TopHubs)
	require.NotNil(t, stats.Tiers)
	assert.Equal(t, int64(3), stats.Tiers.Active)
}

func TestDecayAssociations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.storeMemory(t, "first", false, 1, 0, 0).Memory
	b := env.storeMemory(t, "second", false, 0, 1, 0).Memory
	c := env.storeMemory(t, "third", false, 0, 0, 1).Memory

	_, err := env.store.StrengthenAssociation(ctx, a.ID, b.ID, model.AssociationContextCoOccurrence)
	require.NoError(t, err)
	_, err = env.store.StrengthenAssociation(ctx, a.ID, c.ID, model.AssociationContextCoOccurrence)
	require.NoError(t, err)

	// Halve strengths with a floor of 0.6: both edges decay to 0.5 and drop.
	decayed, dropped, err := env.store.DecayAssociations(ctx, 0.5, 0.6)
	require.NoError(t, err)
	assert.Equal(t, int64(2), decayed)
	assert.Equal(t, int64(2), dropped)

	stats, err := env.store.GraphStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Edges)
}
