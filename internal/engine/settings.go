package engine

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
)

// Settings are the runtime-tunable thresholds driving consolidation, tier
// evaluation, association maintenance, and the fold pipeline. They are
// loaded from the settings table at the start of each cycle; changes apply
// to the next cycle, never to one already in flight.
type Settings struct {
	// Consolidation.
	NearDuplicateThreshold float64

	// Association graph.
	SimilarityFloor float64
	DecayEnabled    bool
	DecayInterval   time.Duration
	DecayFactor     float64
	DecayFloor      float64

	// Tier transitions.
	PhiMid           float64
	PhiHigh          float64
	MinConversations int
	HubMinDegree     int64
	HubMinStrength   float64
	OverrideSticky   bool

	// Fold pipeline.
	PulseEnabled       bool
	PulseInterval      time.Duration
	HubPhiMin          float64
	MinHubDistance     float64
	AnchorMaxAccess    int
	AnchorMinSim       float64
	MinConsonance      float64
	MinCoherenceScore  float64
	EvolutionThreshold float64
	SynthesisPhi       float64
	SyntheticStrength  float64
	Temperature        float64
	MaxTokens          int
}

// DefaultSettings returns the shipped thresholds.
func DefaultSettings() Settings {
	return Settings{
		NearDuplicateThreshold: 0.95,

		SimilarityFloor: 0.5,
		DecayEnabled:    false,
		DecayInterval:   24 * time.Hour,
		DecayFactor:     0.98,
		DecayFloor:      0.1,

		PhiMid:           2.5,
		PhiHigh:          4.5,
		MinConversations: 2,
		HubMinDegree:     3,
		HubMinStrength:   6.0,
		OverrideSticky:   true,

		PulseEnabled:       true,
		PulseInterval:      time.Hour,
		HubPhiMin:          4.0,
		MinHubDistance:     0.3,
		AnchorMaxAccess:    3,
		AnchorMinSim:       0.35,
		MinConsonance:      0.40,
		MinCoherenceScore:  10.0,
		EvolutionThreshold: 0.92,
		SynthesisPhi:       3.0,
		SyntheticStrength:  2.0,
		Temperature:        1.0,
		MaxTokens:          1024,
	}
}

// LoadSettings overlays stored settings onto the defaults. A malformed
// stored value is logged and skipped; the default stands.
func LoadSettings(ctx context.Context, store registrystore.MemoryStore) Settings {
	s := DefaultSettings()

	loadFloat(ctx, store, "dedup.near_duplicate_threshold", &s.NearDuplicateThreshold)

	loadFloat(ctx, store, "assoc.similarity_floor", &s.SimilarityFloor)
	loadBool(ctx, store, "assoc.decay_enabled", &s.DecayEnabled)
	loadDuration(ctx, store, "assoc.decay_interval", &s.DecayInterval)
	loadFloat(ctx, store, "assoc.decay_factor", &s.DecayFactor)
	loadFloat(ctx, store, "assoc.decay_floor", &s.DecayFloor)

	loadFloat(ctx, store, "tier.phi_mid", &s.PhiMid)
	loadFloat(ctx, store, "tier.phi_high", &s.PhiHigh)
	loadInt(ctx, store, "tier.min_conversations", &s.MinConversations)
	loadInt64(ctx, store, "tier.hub_min_degree", &s.HubMinDegree)
	loadFloat(ctx, store, "tier.hub_min_strength", &s.HubMinStrength)
	loadBool(ctx, store, "tier.override_sticky", &s.OverrideSticky)

	loadBool(ctx, store, "fold.pulse_enabled", &s.PulseEnabled)
	loadDuration(ctx, store, "fold.pulse_interval", &s.PulseInterval)
	loadFloat(ctx, store, "fold.hub_phi_min", &s.HubPhiMin)
	loadFloat(ctx, store, "fold.min_hub_distance", &s.MinHubDistance)
	loadInt(ctx, store, "fold.anchor_max_access", &s.AnchorMaxAccess)
	loadFloat(ctx, store, "fold.anchor_min_similarity", &s.AnchorMinSim)
	loadFloat(ctx, store, "fold.min_consonance", &s.MinConsonance)
	loadFloat(ctx, store, "fold.min_coherence_score", &s.MinCoherenceScore)
	loadFloat(ctx, store, "fold.evolution_threshold", &s.EvolutionThreshold)
	loadFloat(ctx, store, "fold.synthesis_phi", &s.SynthesisPhi)
	loadFloat(ctx, store, "fold.synthetic_strength", &s.SyntheticStrength)
	loadFloat(ctx, store, "fold.temperature", &s.Temperature)
	loadInt(ctx, store, "fold.max_tokens", &s.MaxTokens)

	return s
}

func loadFloat(ctx context.Context, store registrystore.MemoryStore, name string, dst *float64) {
	setting, err := store.GetSetting(ctx, name)
	if err != nil || setting == nil {
		return
	}
	v, err := setting.Float64()
	if err != nil {
		log.Warn("Ignoring malformed setting", "name", name, "error", err)
		return
	}
	*dst = v
}

func loadInt(ctx context.Context, store registrystore.MemoryStore, name string, dst *int) {
	setting, err := store.GetSetting(ctx, name)
	if err != nil || setting == nil {
		return
	}
	v, err := setting.Int()
	if err != nil {
		log.Warn("Ignoring malformed setting", "name", name, "error", err)
		return
	}
	*dst = v
}

func loadInt64(ctx context.Context, store registrystore.MemoryStore, name string, dst *int64) {
	setting, err := store.GetSetting(ctx, name)
	if err != nil || setting == nil {
		return
	}
	v, err := setting.Int()
	if err != nil {
		log.Warn("Ignoring malformed setting", "name", name, "error", err)
		return
	}
	*dst = int64(v)
}

func loadBool(ctx context.Context, store registrystore.MemoryStore, name string, dst *bool) {
	setting, err := store.GetSetting(ctx, name)
	if err != nil || setting == nil {
		return
	}
	v, err := setting.Bool()
	if err != nil {
		log.Warn("Ignoring malformed setting", "name", name, "error", err)
		return
	}
	*dst = v
}

func loadDuration(ctx context.Context, store registrystore.MemoryStore, name string, dst *time.Duration) {
	setting, err := store.GetSetting(ctx, name)
	if err != nil || setting == nil {
		return
	}
	v, err := setting.Duration()
	if err != nil {
		log.Warn("Ignoring malformed setting", "name", name, "error", err)
		return
	}
	*dst = v
}
