package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/resonancelabs/resonance-service/internal/metrics"
	"github.com/resonancelabs/resonance-service/internal/model"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
)

// ScoredMemory is a retrieval hit with its similarity score, the unit the
// associator consumes for co-occurrence recording.
type ScoredMemory struct {
	Memory     *model.Memory
	Similarity float64
}

// Associator maintains the weighted undirected co-occurrence graph.
type Associator struct {
	store registrystore.MemoryStore
}

func NewAssociator(store registrystore.MemoryStore) *Associator {
	return &Associator{store: store}
}

// RecordCoOccurrence strengthens the edge for every pair of results whose
// similarity scores both clear the floor. Pairs are unordered; repeat
// pairings strengthen sub-linearly.
func (a *Associator) RecordCoOccurrence(ctx context.Context, results []ScoredMemory, floor float64) error {
	var qualifying []uuid.UUID
	for _, r := range results {
		if r.Similarity >= floor {
			qualifying = append(qualifying, r.Memory.ID)
		}
	}
	for i := 0; i < len(qualifying); i++ {
		for j := i + 1; j < len(qualifying); j++ {
			if _, err := a.store.StrengthenAssociation(ctx, qualifying[i], qualifying[j], model.AssociationContextCoOccurrence); err != nil {
				return err
			}
			metrics.AssociationsStrengthened.WithLabelValues(model.AssociationContextCoOccurrence).Inc()
		}
	}
	return nil
}

// Neighbors returns associated memories ordered by strength descending.
func (a *Associator) Neighbors(ctx context.Context, id uuid.UUID, minStrength float64, limit int) ([]registrystore.Neighbor, error) {
	// Verify the memory exists so a bad id reports NotFound instead of an
	// empty neighborhood.
	if _, err := a.store.GetMemory(ctx, id); err != nil {
		return nil, err
	}
	return a.store.Neighbors(ctx, id, minStrength, limit)
}

// Stats returns whole-graph statistics with the top hubs.
func (a *Associator) Stats(ctx context.Context, topHubs int) (*registrystore.GraphStats, error) {
	if topHubs <= 0 {
		topHubs = 10
	}
	return a.store.GraphStats(ctx, topHubs)
}
