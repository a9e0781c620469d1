// Package ristretto provides an in-process embedding cache. It is the
// default: no external service, admission-controlled memory use.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/resonancelabs/resonance-service/internal/config"
	registrycache "github.com/resonancelabs/resonance-service/internal/registry/cache"
)

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "ristretto",
		Loader: func(ctx context.Context) (registrycache.EmbeddingCache, error) {
			var ttl time.Duration
			if cfg := config.FromContext(ctx); cfg != nil {
				ttl = cfg.CacheTTL
			}
			cache, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
				NumCounters: 100_000,
				MaxCost:     64 << 20, // ~64MB of embeddings
				BufferItems: 64,
			})
			if err != nil {
				return nil, err
			}
			return &Cache{cache: cache, ttl: ttl}, nil
		},
	})
}

type Cache struct {
	cache *ristretto.Cache[string, []float32]
	ttl   time.Duration
}

func (c *Cache) Name() string    { return "ristretto" }
func (c *Cache) Available() bool { return true }

func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool) {
	return c.cache.Get(key)
}

func (c *Cache) Put(ctx context.Context, key string, embedding []float32) {
	// Cost is the embedding's byte footprint.
	c.cache.SetWithTTL(key, embedding, int64(len(embedding)*4), c.ttl)
}
