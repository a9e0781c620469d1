// Package pgvector stores embeddings in postgres next to the memory rows,
// using the pgvector extension for cosine search.
package pgvector

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	pgvec "github.com/pgvector/pgvector-go"
	"github.com/resonancelabs/resonance-service/internal/config"
	registrymigrate "github.com/resonancelabs/resonance-service/internal/registry/migrate"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed db/schema.sql
var schemaSQLTemplate string

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registryvector.Register(registryvector.Plugin{
		Name: "pgvector",
		Loader: func(ctx context.Context) (registryvector.VectorStore, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.DBURL == "" {
				return nil, fmt.Errorf("pgvector: RESONANCE_DB_URL is required")
			}
			db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{})
			if err != nil {
				return nil, fmt.Errorf("pgvector: failed to connect: %w", err)
			}
			return &VectorStore{db: db}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 200, Migrator: &pgvectorMigrator{}})
}

type pgvectorMigrator struct{}

func (m *pgvectorMigrator) Name() string { return "pgvector-schema" }
func (m *pgvectorMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.VectorMigrateAtStart || cfg.VectorType != "pgvector" {
		return nil
	}
	log.Info("Running migration", "name", m.Name())
	db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("pgvector migration: failed to connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	schema := fmt.Sprintf(schemaSQLTemplate, cfg.EmbedDimensions)
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("pgvector migration: %w", err)
	}
	return nil
}

// VectorStore implements the vector registry interface on pgvector.
type VectorStore struct {
	db *gorm.DB
}

func (v *VectorStore) Name() string    { return "pgvector" }
func (v *VectorStore) IsEnabled() bool { return true }

// Upsert writes or replaces the embedding row for a memory.
func (v *VectorStore) Upsert(ctx context.Context, memoryID uuid.UUID, embedding []float32, modelName string) error {
	if len(embedding) == 0 {
		return fmt.Errorf("pgvector: empty embedding for memory %s", memoryID)
	}
	err := v.db.WithContext(ctx).Exec(`
		INSERT INTO memory_embeddings (memory_id, embedding, model, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (memory_id) DO UPDATE
		SET embedding = EXCLUDED.embedding, model = EXCLUDED.model, updated_at = EXCLUDED.updated_at`,
		memoryID, pgvec.NewVector(embedding), modelName, time.Now()).Error
	if err != nil {
		return fmt.Errorf("pgvector upsert: %w", err)
	}
	return nil
}

// Search returns the nearest live memories by cosine similarity. Rows whose
// memory has been soft-deleted are excluded by the join.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]registryvector.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("pgvector: empty query embedding")
	}
	var rows []struct {
		MemoryID uuid.UUID
		Score    float64
	}
	err := v.db.WithContext(ctx).Raw(`
		SELECT e.memory_id, 1 - (e.embedding <=> ?) AS score
		FROM memory_embeddings e
		JOIN memories m ON m.id = e.memory_id AND m.deleted_at IS NULL
		ORDER BY e.embedding <=> ?
		LIMIT ?`,
		pgvec.NewVector(embedding), pgvec.NewVector(embedding), limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	results := make([]registryvector.SearchResult, len(rows))
	for i, r := range rows {
		results[i] = registryvector.SearchResult{MemoryID: r.MemoryID, Score: r.Score}
	}
	return results, nil
}

// GetEmbedding returns the stored embedding, or (nil, nil) when absent.
func (v *VectorStore) GetEmbedding(ctx context.Context, memoryID uuid.UUID) ([]float32, error) {
	var row struct {
		Embedding pgvec.Vector
	}
	result := v.db.WithContext(ctx).Raw(`
		SELECT embedding FROM memory_embeddings WHERE memory_id = ?`, memoryID).Scan(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("pgvector get embedding: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return row.Embedding.Slice(), nil
}

// Delete removes the embedding row for a memory.
func (v *VectorStore) Delete(ctx context.Context, memoryID uuid.UUID) error {
	err := v.db.WithContext(ctx).Exec(`DELETE FROM memory_embeddings WHERE memory_id = ?`, memoryID).Error
	if err != nil {
		return fmt.Errorf("pgvector delete: %w", err)
	}
	return nil
}
