// Package engine implements the memory lifecycle: consolidation, tier
// evaluation, the association graph, and the fold synthesis pipeline.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/resonancelabs/resonance-service/internal/metrics"
	"github.com/resonancelabs/resonance-service/internal/model"
	registrycache "github.com/resonancelabs/resonance-service/internal/registry/cache"
	registryembed "github.com/resonancelabs/resonance-service/internal/registry/embed"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
)

const (
	catalystBoost   = 1.0
	ordinaryBoost   = 0.1
	catalystPhiSeed = 1.0
)

// ContentHash returns the dedup key for content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// StoreRequest carries new content into the consolidator.
type StoreRequest struct {
	Content        string
	Catalyst       bool
	ConversationID string
	Category       string
	Tags           []string
	Source         string
	Metadata       map[string]interface{}
}

// StoreResult reports what the consolidator decided.
type StoreResult struct {
	Memory      *model.Memory
	IsDuplicate bool
	// Similarity is set when the near-duplicate path matched.
	Similarity float64
}

// Consolidator decides whether new content is identical, near-duplicate, or
// novel, and merges resonance instead of fragmenting knowledge.
type Consolidator struct {
	store    registrystore.MemoryStore
	vector   registryvector.VectorStore
	embedder registryembed.Embedder
	cache    registrycache.EmbeddingCache
}

func NewConsolidator(store registrystore.MemoryStore, vector registryvector.VectorStore, embedder registryembed.Embedder, cache registrycache.EmbeddingCache) *Consolidator {
	return &Consolidator{store: store, vector: vector, embedder: embedder, cache: cache}
}

// Embed returns the embedding for content, consulting the cache first.
func (c *Consolidator) Embed(ctx context.Context, content string) ([]float32, error) {
	key := ContentHash(content)
	if c.cache != nil {
		if embedding, ok := c.cache.Get(ctx, key); ok {
			return embedding, nil
		}
	}
	embeddings, err := c.embedder.EmbedTexts(ctx, []string{content})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(embeddings))
	}
	if c.cache != nil {
		c.cache.Put(ctx, key, embeddings[0])
	}
	return embeddings[0], nil
}

// Store is the consolidation entry point: exact-hash check, then
// near-duplicate check against the top vector hit, then novel insert.
// Whichever memory is returned gets its access bookkeeping updated.
func (c *Consolidator) Store(ctx context.Context, req StoreRequest, settings Settings) (*StoreResult, error) {
	if req.Content == "" {
		return nil, &registrystore.ValidationError{Field: "content", Message: "must not be empty"}
	}
	if len([]rune(req.Content)) > model.MaxContentChars {
		return nil, &registrystore.ValidationError{Field: "content", Message: fmt.Sprintf("exceeds %d characters", model.MaxContentChars)}
	}
	hash := ContentHash(req.Content)

	// Exact duplicate.
	if existing, err := c.store.FindByContentHash(ctx, hash); err != nil {
		return nil, err
	} else if existing != nil {
		return c.duplicateHit(ctx, existing, req, 0, "exact")
	}

	embedding, err := c.Embed(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	// Near duplicate: top-1 vector hit at or above the threshold merges
	// into the existing memory rather than inserting.
	if nearest, score, err := c.nearest(ctx, embedding); err != nil {
		return nil, err
	} else if nearest != nil && score >= settings.NearDuplicateThreshold {
		boost := ordinaryBoost
		if req.Catalyst || nearest.IsCatalyst {
			boost = catalystBoost
		}
		if _, err := c.store.BoostPhi(ctx, nearest.ID, boost); err != nil {
			return nil, err
		}
		log.Debug("Consolidated near-duplicate", "memory_id", nearest.ID, "similarity", score, "boost", boost)
		return c.duplicateHit(ctx, nearest, req, score, "near_duplicate")
	}

	// Novel.
	m := &model.Memory{
		Content:     req.Content,
		ContentHash: hash,
		Tier:        model.TierActive,
		IsCatalyst:  req.Catalyst,
		Category:    req.Category,
		Tags:        req.Tags,
		Source:      req.Source,
		Metadata:    req.Metadata,
	}
	if req.Catalyst {
		m.ResonancePhi = catalystPhiSeed
	}
	if err := c.store.CreateMemory(ctx, m); err != nil {
		var conflict *registrystore.ConflictError
		if errors.As(err, &conflict) {
			// Lost a concurrent insert race: the unique constraint is the
			// source of truth, so resolve to the winner.
			winner, ferr := c.store.FindByContentHash(ctx, hash)
			if ferr != nil {
				return nil, ferr
			}
			if winner != nil {
				return c.duplicateHit(ctx, winner, req, 0, "exact")
			}
		}
		return nil, err
	}
	if err := c.vector.Upsert(ctx, m.ID, embedding, c.embedder.ModelName()); err != nil {
		return nil, fmt.Errorf("failed to index embedding for memory %s: %w", m.ID, err)
	}
	touched, err := c.store.TouchAccess(ctx, m.ID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	metrics.Consolidations.WithLabelValues("novel").Inc()
	metrics.MemoriesCreated.WithLabelValues("store").Inc()
	return &StoreResult{Memory: touched}, nil
}

func (c *Consolidator) duplicateHit(ctx context.Context, m *model.Memory, req StoreRequest, similarity float64, kind string) (*StoreResult, error) {
	touched, err := c.store.TouchAccess(ctx, m.ID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	metrics.Consolidations.WithLabelValues(kind).Inc()
	return &StoreResult{Memory: touched, IsDuplicate: true, Similarity: similarity}, nil
}

// nearest returns the most similar live memory and its score, or nil when
// the index is empty.
func (c *Consolidator) nearest(ctx context.Context, embedding []float32) (*model.Memory, float64, error) {
	hits, err := c.vector.Search(ctx, embedding, 1)
	if err != nil {
		return nil, 0, err
	}
	if len(hits) == 0 {
		return nil, 0, nil
	}
	m, err := c.store.GetMemory(ctx, hits[0].MemoryID)
	if err != nil {
		var nf *registrystore.NotFoundError
		if errors.As(err, &nf) {
			// Index is ahead of the store (deleted row); treat as no match.
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return m, hits[0].Score, nil
}
