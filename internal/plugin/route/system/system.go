// Package system serves the operational endpoints: liveness, readiness,
// metrics, and the runtime settings store.
package system

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/resonancelabs/resonance-service/internal/model"
	"github.com/resonancelabs/resonance-service/internal/plugin/route/memories"
	registryroute "github.com/resonancelabs/resonance-service/internal/registry/route"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
)

var ready atomic.Bool

// MarkReady signals that the service has finished initializing and is ready
// to serve traffic.
func MarkReady() {
	ready.Store(true)
}

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 0,
		Loader: func(r *gin.Engine) error {
			// Liveness: process is up.
			r.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			// Readiness: initialization finished.
			r.GET("/ready", func(c *gin.Context) {
				if ready.Load() {
					c.JSON(http.StatusOK, gin.H{"status": "ready"})
				} else {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
				}
			})

			r.GET("/metrics", gin.WrapH(promhttp.Handler()))
			return nil
		},
	})
}

// MountRoutes mounts the runtime settings endpoints. Settings take effect
// at the next cycle that loads them, never retroactively.
func MountRoutes(r *gin.Engine, store registrystore.MemoryStore) {
	g := r.Group("/v1")
	g.GET("/settings", func(c *gin.Context) { listSettings(c, store) })
	g.PUT("/settings/:name", func(c *gin.Context) { putSetting(c, store) })
}

func listSettings(c *gin.Context, store registrystore.MemoryStore) {
	settings, err := store.ListSettings(c.Request.Context())
	if err != nil {
		memories.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

type putSettingRequest struct {
	Value     string `json:"value" binding:"required"`
	ValueType string `json:"valueType" binding:"required"`
}

func putSetting(c *gin.Context, store registrystore.MemoryStore) {
	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	setting := model.Setting{
		Name:      c.Param("name"),
		Value:     req.Value,
		ValueType: model.SettingType(req.ValueType),
	}
	if err := store.PutSetting(c.Request.Context(), setting); err != nil {
		memories.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}
