package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	pgstore "github.com/resonancelabs/resonance-service/internal/plugin/store/postgres"
	"github.com/resonancelabs/resonance-service/internal/plugin/store/sqlite"
	registrygenerate "github.com/resonancelabs/resonance-service/internal/registry/generate"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns preset vectors by exact text and fails on unknown
// text, so each test controls the geometry completely.
type fakeEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, vectors: map[string][]float32{}}
}

func (f *fakeEmbedder) set(text string, vec ...float32) {
	unit := make([]float32, len(vec))
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		unit[i] = float32(float64(v) / norm)
	}
	f.vectors[text] = unit
}

func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return f.dim }

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no vector registered for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

// fakeVector is an in-memory cosine index.
type fakeVector struct {
	mu      sync.Mutex
	vectors map[uuid.UUID][]float32
}

func newFakeVector() *fakeVector {
	return &fakeVector{vectors: map[uuid.UUID][]float32{}}
}

func (f *fakeVector) Name() string    { return "fake" }
func (f *fakeVector) IsEnabled() bool { return true }

func (f *fakeVector) Upsert(ctx context.Context, memoryID uuid.UUID, embedding []float32, modelName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[memoryID] = embedding
	return nil
}

func (f *fakeVector) Delete(ctx context.Context, memoryID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, memoryID)
	return nil
}

func (f *fakeVector) GetEmbedding(ctx context.Context, memoryID uuid.UUID) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vec, ok := f.vectors[memoryID]
	if !ok {
		return nil, nil
	}
	return vec, nil
}

func (f *fakeVector) Search(ctx context.Context, embedding []float32, limit int) ([]registryvector.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []registryvector.SearchResult
	for id, vec := range f.vectors {
		results = append(results, registryvector.SearchResult{MemoryID: id, Score: cosine(embedding, vec)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// fakeGenerator returns a canned synthesis or a scripted error.
type fakeGenerator struct {
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Name() string { return "fake" }
func (f *fakeGenerator) Generate(ctx context.Context, req registrygenerate.Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type testEnv struct {
	store        *pgstore.Store
	vector       *fakeVector
	embedder     *fakeEmbedder
	generator    *fakeGenerator
	consolidator *Consolidator
	tiers        *TierEvaluator
	associator   *Associator
	fold         *Fold
	settings     Settings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)

	env := &testEnv{
		store:     store,
		vector:    newFakeVector(),
		embedder:  newFakeEmbedder(3),
		generator: &fakeGenerator{text: "synthesized insight"},
		settings:  DefaultSettings(),
	}
	env.consolidator = NewConsolidator(store, env.vector, env.embedder, nil)
	env.tiers = NewTierEvaluator(store)
	env.associator = NewAssociator(store)
	env.fold = NewFold(store, env.vector, env.consolidator, env.tiers, env.generator)
	return env
}

// storeMemory registers the vector for content and runs it through the
// consolidator.
func (e *testEnv) storeMemory(t *testing.T, content string, catalyst bool, vec ...float32) *StoreResult {
	t.Helper()
	e.embedder.set(content, vec...)
	result, err := e.consolidator.Store(context.Background(), StoreRequest{Content: content, Catalyst: catalyst}, e.settings)
	require.NoError(t, err)
	return result
}
