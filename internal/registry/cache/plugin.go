package cache

import (
	"context"
	"fmt"
)

// EmbeddingCache memoizes content-hash → embedding so re-stored or
// re-queried text skips the embedding provider. A miss is never an error.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Put(ctx context.Context, key string, embedding []float32)
	Available() bool
	Name() string
}

// Loader creates an EmbeddingCache from config.
type Loader func(ctx context.Context) (EmbeddingCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
