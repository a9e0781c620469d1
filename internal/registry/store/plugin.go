package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/resonancelabs/resonance-service/internal/model"
)

// Neighbor is one edge endpoint returned by association discovery.
type Neighbor struct {
	Memory   model.Memory `json:"memory"`
	Strength float64      `json:"strength"`
	Context  string       `json:"context"`
}

// HubStat aggregates a memory's position in the association graph.
type HubStat struct {
	MemoryID    uuid.UUID `json:"memoryId"`
	Degree      int64     `json:"degree"`
	StrengthSum float64   `json:"strengthSum"`
}

// GraphStats is the whole-graph summary.
type GraphStats struct {
	Memories int64       `json:"memories"`
	Edges    int64       `json:"edges"`
	Density  float64     `json:"density"`
	TopHubs  []HubStat   `json:"topHubs"`
	Tiers    *TierCounts `json:"tiers"`
}

// TierCounts is the per-tier memory census for the stats endpoint.
type TierCounts struct {
	Active  int64 `json:"active"`
	Thread  int64 `json:"thread"`
	Stable  int64 `json:"stable"`
	Network int64 `json:"network"`
	Deleted int64 `json:"deleted"`
}

// MemoryStore is the persistence boundary for the lifecycle engine. All
// phi/access/strength mutations are read-modify-write under row locking (or
// the dialect's equivalent), never last-writer-wins.
type MemoryStore interface {
	// CreateMemory inserts a new memory row. A content-hash collision with a
	// live row returns *ConflictError.
	CreateMemory(ctx context.Context, m *model.Memory) error
	GetMemory(ctx context.Context, id uuid.UUID) (*model.Memory, error)
	// FindByContentHash returns the live row for the hash, or (nil, nil).
	FindByContentHash(ctx context.Context, hash string) (*model.Memory, error)
	// TouchAccess increments access bookkeeping and adds the conversation id
	// to the accessed set. Empty conversation id skips the set update.
	TouchAccess(ctx context.Context, id uuid.UUID, conversationID string) (*model.Memory, error)
	// BoostPhi applies a phi delta atomically, clamped to [0,5].
	BoostPhi(ctx context.Context, id uuid.UUID, delta float64) (*model.Memory, error)
	// SetTier applies an automatic tier transition.
	SetTier(ctx context.Context, id uuid.UUID, tier model.Tier) error
	// OverrideTier applies a manual tier-set with a reason and marks the row
	// overridden.
	OverrideTier(ctx context.Context, id uuid.UUID, tier model.Tier, reason string) (*model.Memory, error)
	SoftDeleteMemory(ctx context.Context, id uuid.UUID) error
	// ListByMinPhi returns live memories with phi >= min, highest phi first.
	ListByMinPhi(ctx context.Context, minPhi float64, limit int) ([]model.Memory, error)
	// ListLowAccess returns live memories with access_count < max, oldest first.
	ListLowAccess(ctx context.Context, maxAccess int, limit int) ([]model.Memory, error)
	CountMemories(ctx context.Context) (*TierCounts, error)

	// StrengthenAssociation find-or-creates the unordered edge and applies
	// the sub-linear co-occurrence increment. The first pairing lands at 1.0.
	StrengthenAssociation(ctx context.Context, a, b uuid.UUID, context string) (*model.Association, error)
	// ManifestSynthesis commits a fold result atomically: the new memory row
	// plus one synthetic edge per ancestor, seeded at strength (existing
	// edges are raised to at least that strength, never lowered).
	ManifestSynthesis(ctx context.Context, m *model.Memory, ancestors []uuid.UUID, strength float64) error
	Neighbors(ctx context.Context, id uuid.UUID, minStrength float64, limit int) ([]Neighbor, error)
	HubStats(ctx context.Context, id uuid.UUID) (*HubStat, error)
	TopHubs(ctx context.Context, limit int) ([]HubStat, error)
	GraphStats(ctx context.Context, topHubs int) (*GraphStats, error)
	// CountEdgesAmong counts edges whose both endpoints are in ids; used for
	// the bridging signal in network-tier promotion.
	CountEdgesAmong(ctx context.Context, ids []uuid.UUID) (int64, error)
	// DecayAssociations multiplies every strength by factor and drops edges
	// that fall below floor. Returns (decayed, dropped).
	DecayAssociations(ctx context.Context, factor, floor float64) (int64, int64, error)

	GetSetting(ctx context.Context, name string) (*model.Setting, error)
	PutSetting(ctx context.Context, s model.Setting) error
	ListSettings(ctx context.Context) ([]model.Setting, error)
}

// Loader creates a MemoryStore from config.
type Loader func(ctx context.Context) (MemoryStore, error)

// Plugin represents a datastore plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
