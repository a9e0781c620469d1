package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SearchResult is a single k-NN hit with its cosine similarity score.
type SearchResult struct {
	MemoryID uuid.UUID `json:"memoryId"`
	Score    float64   `json:"score"`
}

// VectorStore is the similarity-search collaborator: cosine k-NN over
// fixed-dimension embeddings keyed by memory id. Results may include ids of
// rows concurrently soft-deleted in the datastore; callers re-check against
// the store.
type VectorStore interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error)
	Upsert(ctx context.Context, memoryID uuid.UUID, embedding []float32, modelName string) error
	// GetEmbedding returns the stored embedding, or (nil, nil) when absent.
	GetEmbedding(ctx context.Context, memoryID uuid.UUID) ([]float32, error)
	Delete(ctx context.Context, memoryID uuid.UUID) error
	IsEnabled() bool
	Name() string
}

// Loader creates a VectorStore from config.
type Loader func(ctx context.Context) (VectorStore, error)

// Plugin represents a vector store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a vector store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered vector store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named vector store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown vector store %q; valid: %v", name, Names())
}
