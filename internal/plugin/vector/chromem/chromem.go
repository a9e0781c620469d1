// Package chromem provides an embedded, pure-Go vector store. It is the
// development and test counterpart to the pgvector plugin and needs no
// external services.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"github.com/resonancelabs/resonance-service/internal/config"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
)

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registryvector.Register(registryvector.Plugin{
		Name: "chromem",
		Loader: func(ctx context.Context) (registryvector.VectorStore, error) {
			cfg := config.FromContext(ctx)
			path := ""
			if cfg != nil {
				path = cfg.ChromemPath
			}
			return Open(path)
		},
	})
}

const collectionName = "memories"

// VectorStore implements the vector registry interface on chromem-go.
// chromem has no get-by-id or delete, so we keep our own embedding index
// alongside the collection and filter deleted ids out of query results.
type VectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu         sync.RWMutex
	embeddings map[uuid.UUID][]float32
}

// Open creates the store. An empty path keeps everything in memory.
func Open(path string) (*VectorStore, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("chromem: failed to open %s: %w", path, err)
		}
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: failed to create collection: %w", err)
	}
	return &VectorStore{
		db:         db,
		collection: col,
		embeddings: make(map[uuid.UUID][]float32),
	}, nil
}

func (v *VectorStore) Name() string    { return "chromem" }
func (v *VectorStore) IsEnabled() bool { return true }

// Upsert adds or replaces the embedding for a memory.
func (v *VectorStore) Upsert(ctx context.Context, memoryID uuid.UUID, embedding []float32, modelName string) error {
	if len(embedding) == 0 {
		return fmt.Errorf("chromem: empty embedding for memory %s", memoryID)
	}
	doc := chromem.Document{
		ID:        memoryID.String(),
		Content:   memoryID.String(),
		Embedding: embedding,
		Metadata:  map[string]string{"model": modelName},
	}
	if err := v.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem upsert: %w", err)
	}
	v.mu.Lock()
	v.embeddings[memoryID] = embedding
	v.mu.Unlock()
	return nil
}

// Search returns the nearest memories by cosine similarity. chromem rejects
// nResults larger than the collection, so the limit shrinks on that error.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]registryvector.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("chromem: empty query embedding")
	}
	var results []chromem.Result
	for n := limit; n >= 1; n-- {
		var err error
		results, err = v.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
		if err == nil {
			break
		}
		if isTooFewDocsError(err) {
			if n == 1 {
				return nil, nil // empty collection
			}
			continue
		}
		return nil, fmt.Errorf("chromem search: %w", err)
	}
	out := make([]registryvector.SearchResult, 0, len(results))
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, r := range results {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		if _, live := v.embeddings[id]; !live {
			continue // deleted
		}
		out = append(out, registryvector.SearchResult{MemoryID: id, Score: float64(r.Similarity)})
	}
	return out, nil
}

// GetEmbedding returns a stored embedding, or (nil, nil) when absent.
func (v *VectorStore) GetEmbedding(ctx context.Context, memoryID uuid.UUID) ([]float32, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	embedding, ok := v.embeddings[memoryID]
	if !ok {
		return nil, nil
	}
	out := make([]float32, len(embedding))
	copy(out, embedding)
	return out, nil
}

// Delete drops the embedding from the index. The chromem document stays but
// is filtered out of future search results.
func (v *VectorStore) Delete(ctx context.Context, memoryID uuid.UUID) error {
	v.mu.Lock()
	delete(v.embeddings, memoryID)
	v.mu.Unlock()
	return nil
}

func isTooFewDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
