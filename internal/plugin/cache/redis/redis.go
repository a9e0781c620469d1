// Package redis provides a shared embedding cache for multi-replica
// deployments. Cache errors degrade to misses; the cache never blocks the
// consolidation path.
package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/resonancelabs/resonance-service/internal/config"
	registrycache "github.com/resonancelabs/resonance-service/internal/registry/cache"
)

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "redis",
		Loader: func(ctx context.Context) (registrycache.EmbeddingCache, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.RedisURL == "" {
				return nil, fmt.Errorf("redis cache: RESONANCE_REDIS_URL is required")
			}
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("redis cache: invalid url: %w", err)
			}
			client := redis.NewClient(opts)
			if err := client.Ping(ctx).Err(); err != nil {
				return nil, fmt.Errorf("redis cache: ping failed: %w", err)
			}
			return &Cache{client: client, ttl: cfg.CacheTTL}, nil
		},
	})
}

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *Cache) Name() string    { return "redis" }
func (c *Cache) Available() bool { return c.client.Ping(context.Background()).Err() == nil }

func cacheKey(key string) string { return "resonance:embedding:" + key }

func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warn("Redis cache get failed", "error", err)
		return nil, false
	}
	if len(raw)%4 != 0 {
		return nil, false
	}
	embedding := make([]float32, len(raw)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return embedding, true
}

func (c *Cache) Put(ctx context.Context, key string, embedding []float32) {
	raw := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	if err := c.client.Set(ctx, cacheKey(key), raw, c.ttl).Err(); err != nil {
		log.Warn("Redis cache put failed", "error", err)
	}
}
