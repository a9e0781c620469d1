// Package fold serves the synthesis-cycle endpoints.
package fold

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resonancelabs/resonance-service/internal/plugin/route/memories"
	"github.com/resonancelabs/resonance-service/internal/service"
)

// MountRoutes mounts the fold endpoints on the given router.
func MountRoutes(r *gin.Engine, pulse *service.FoldPulse) {
	g := r.Group("/v1")
	g.POST("/fold/cycles", func(c *gin.Context) { runCycle(c, pulse) })
	g.GET("/fold/status", func(c *gin.Context) { status(c, pulse) })
}

func runCycle(c *gin.Context, pulse *service.FoldPulse) {
	result, err := pulse.Trigger(c.Request.Context())
	if err != nil {
		memories.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func status(c *gin.Context, pulse *service.FoldPulse) {
	last := pulse.Last()
	if last == nil {
		c.JSON(http.StatusOK, gin.H{"lastCycle": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lastCycle": last})
}
