// Package noop disables embedding caching; every lookup is a miss.
package noop

import (
	"context"

	registrycache "github.com/resonancelabs/resonance-service/internal/registry/cache"
)

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "noop",
		Loader: func(ctx context.Context) (registrycache.EmbeddingCache, error) {
			return Cache{}, nil
		},
	})
}

type Cache struct{}

func (Cache) Name() string                                          { return "noop" }
func (Cache) Available() bool                                       { return false }
func (Cache) Get(ctx context.Context, key string) ([]float32, bool) { return nil, false }
func (Cache) Put(ctx context.Context, key string, embedding []float32) {}
