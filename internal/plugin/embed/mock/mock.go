// Package mock provides a deterministic embedder for development and tests.
// Identical texts always embed identically, so dedup and similarity paths
// can be exercised without a model server.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/resonancelabs/resonance-service/internal/config"
	registryembed "github.com/resonancelabs/resonance-service/internal/registry/embed"
)

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registryembed.Register(registryembed.Plugin{
		Name: "mock",
		Loader: func(ctx context.Context) (registryembed.Embedder, error) {
			dim := 768
			if cfg := config.FromContext(ctx); cfg != nil && cfg.EmbedDimensions > 0 {
				dim = cfg.EmbedDimensions
			}
			return New(dim), nil
		},
	})
}

type MockEmbedder struct {
	dimensions int
}

func New(dimensions int) *MockEmbedder {
	return &MockEmbedder{dimensions: dimensions}
}

func (m *MockEmbedder) ModelName() string { return "mock" }
func (m *MockEmbedder) Dimension() int    { return m.dimensions }

// EmbedTexts hashes each text and expands the hash into a unit vector with
// an LCG. Equal texts map to equal vectors; unrelated texts are near
// orthogonal in high dimensions.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New64a()
		h.Write([]byte(text))
		seed := h.Sum64()

		vec := make([]float32, m.dimensions)
		for j := range vec {
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[j] = float32(int64(seed)) / float32(math.MaxInt64)
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

func normalize(vec []float32) {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
}
