// Package associations serves the association-graph read endpoints.
package associations

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/resonancelabs/resonance-service/internal/engine"
	"github.com/resonancelabs/resonance-service/internal/model"
	"github.com/resonancelabs/resonance-service/internal/plugin/route/memories"
)

// MountRoutes mounts the graph endpoints on the given router.
func MountRoutes(r *gin.Engine, associator *engine.Associator) {
	g := r.Group("/v1")
	g.GET("/memories/:id/associations", func(c *gin.Context) { listAssociations(c, associator) })
	g.GET("/graph/stats", func(c *gin.Context) { graphStats(c, associator) })
}

type neighborResponse struct {
	Memory   *model.Memory `json:"memory"`
	Strength float64       `json:"strength"`
	Context  string        `json:"context"`
}

func listAssociations(c *gin.Context, associator *engine.Associator) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid memory id"})
		return
	}
	minStrength, _ := strconv.ParseFloat(c.DefaultQuery("minStrength", "0"), 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	neighbors, err := associator.Neighbors(c.Request.Context(), id, minStrength, limit)
	if err != nil {
		memories.WriteError(c, err)
		return
	}
	out := make([]neighborResponse, len(neighbors))
	for i, n := range neighbors {
		m := n.Memory
		out[i] = neighborResponse{Memory: &m, Strength: n.Strength, Context: n.Context}
	}
	c.JSON(http.StatusOK, gin.H{"associations": out})
}

func graphStats(c *gin.Context, associator *engine.Associator) {
	topHubs, _ := strconv.Atoi(c.DefaultQuery("topHubs", "10"))
	stats, err := associator.Stats(c.Request.Context(), topHubs)
	if err != nil {
		memories.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
