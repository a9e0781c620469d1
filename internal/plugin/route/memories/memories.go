// Package memories serves the memory CRUD and search endpoints.
package memories

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/resonancelabs/resonance-service/internal/capability"
	"github.com/resonancelabs/resonance-service/internal/engine"
	"github.com/resonancelabs/resonance-service/internal/model"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
	"github.com/resonancelabs/resonance-service/internal/resonance"
)

// MountRoutes mounts the memory endpoints on the given router.
func MountRoutes(r *gin.Engine, store registrystore.MemoryStore, vector registryvector.VectorStore, consolidator *engine.Consolidator, tiers *engine.TierEvaluator, associator *engine.Associator) {
	g := r.Group("/v1")

	g.POST("/memories", func(c *gin.Context) { postMemory(c, store, consolidator, tiers) })
	g.GET("/memories/:id", func(c *gin.Context) { getMemory(c, store, tiers) })
	g.DELETE("/memories/:id", func(c *gin.Context) { deleteMemory(c, store, vector) })
	g.PUT("/memories/:id/tier", func(c *gin.Context) { overrideTier(c, tiers) })
	g.POST("/memories/search", func(c *gin.Context) { searchMemories(c, store, vector, consolidator, associator) })
}

// WriteError maps the domain error taxonomy onto HTTP statuses. Shared by
// the other route packages.
func WriteError(c *gin.Context, err error) {
	var (
		notFound    *registrystore.NotFoundError
		validation  *registrystore.ValidationError
		conflict    *registrystore.ConflictError
		invalidTier *registrystore.InvalidTierError
		rangeErr    *resonance.RangeError
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation), errors.As(err, &invalidTier), errors.As(err, &rangeErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, capability.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid memory id"})
		return uuid.Nil, false
	}
	return id, true
}

type postMemoryRequest struct {
	Content        string                 `json:"content" binding:"required"`
	Catalyst       bool                   `json:"catalyst"`
	ConversationID string                 `json:"conversationId"`
	Category       string                 `json:"category"`
	Tags           []string               `json:"tags"`
	Source         string                 `json:"source"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func postMemory(c *gin.Context, store registrystore.MemoryStore, consolidator *engine.Consolidator, tiers *engine.TierEvaluator) {
	var req postMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings := engine.LoadSettings(c.Request.Context(), store)
	result, err := consolidator.Store(c.Request.Context(), engine.StoreRequest{
		Content:        req.Content,
		Catalyst:       req.Catalyst,
		ConversationID: req.ConversationID,
		Category:       req.Category,
		Tags:           req.Tags,
		Source:         req.Source,
		Metadata:       req.Metadata,
	}, settings)
	if err != nil {
		WriteError(c, err)
		return
	}
	if _, err := tiers.Evaluate(c.Request.Context(), result.Memory.ID, settings); err != nil {
		WriteError(c, err)
		return
	}
	status := http.StatusCreated
	if result.IsDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"memory":      result.Memory,
		"isDuplicate": result.IsDuplicate,
		"similarity":  result.Similarity,
	})
}

func getMemory(c *gin.Context, store registrystore.MemoryStore, tiers *engine.TierEvaluator) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	m, err := store.TouchAccess(c.Request.Context(), id, c.Query("conversationId"))
	if err != nil {
		WriteError(c, err)
		return
	}
	// Reads are the opportunistic trigger for tier evaluation.
	settings := engine.LoadSettings(c.Request.Context(), store)
	tr, err := tiers.Evaluate(c.Request.Context(), id, settings)
	if err != nil {
		WriteError(c, err)
		return
	}
	m.Tier = tr.New
	c.JSON(http.StatusOK, gin.H{"memory": m})
}

func deleteMemory(c *gin.Context, store registrystore.MemoryStore, vector registryvector.VectorStore) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := store.SoftDeleteMemory(c.Request.Context(), id); err != nil {
		WriteError(c, err)
		return
	}
	if err := vector.Delete(c.Request.Context(), id); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type overrideTierRequest struct {
	Tier   string `json:"tier" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func overrideTier(c *gin.Context, tiers *engine.TierEvaluator) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req overrideTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tr, err := tiers.Override(c.Request.Context(), id, model.Tier(req.Tier), req.Reason)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

type searchRequest struct {
	Query          string `json:"query" binding:"required"`
	Limit          int    `json:"limit"`
	ConversationID string `json:"conversationId"`
}

type searchHit struct {
	Memory     *model.Memory `json:"memory"`
	Similarity float64       `json:"similarity"`
	Weight     float64       `json:"weight"`
}

func searchMemories(c *gin.Context, store registrystore.MemoryStore, vector registryvector.VectorStore, consolidator *engine.Consolidator, associator *engine.Associator) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	ctx := c.Request.Context()
	settings := engine.LoadSettings(ctx, store)

	embedding, err := consolidator.Embed(ctx, req.Query)
	if err != nil {
		WriteError(c, err)
		return
	}
	found, err := vector.Search(ctx, embedding, limit)
	if err != nil {
		WriteError(c, err)
		return
	}

	hits := make([]searchHit, 0, len(found))
	scored := make([]engine.ScoredMemory, 0, len(found))
	for _, hit := range found {
		m, err := store.TouchAccess(ctx, hit.MemoryID, req.ConversationID)
		if err != nil {
			var nf *registrystore.NotFoundError
			if errors.As(err, &nf) {
				continue // index row outlived its memory
			}
			WriteError(c, err)
			return
		}
		weight, err := resonance.StructuralWeight(clamp01(hit.Score), m.ResonancePhi)
		if err != nil {
			WriteError(c, err)
			return
		}
		hits = append(hits, searchHit{Memory: m, Similarity: hit.Score, Weight: weight})
		scored = append(scored, engine.ScoredMemory{Memory: m, Similarity: hit.Score})
	}

	// Resonance outranks raw similarity.
	sort.Slice(hits, func(i, j int) bool { return hits[i].Weight > hits[j].Weight })

	if err := associator.RecordCoOccurrence(ctx, scored, settings.SimilarityFloor); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
