package engine

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/resonancelabs/resonance-service/internal/metrics"
	"github.com/resonancelabs/resonance-service/internal/model"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
)

// Transition reports one tier evaluation. When no condition fires, Previous
// and New are equal and Trigger is empty.
type Transition struct {
	Previous model.Tier `json:"previous"`
	New      model.Tier `json:"new"`
	Trigger  string     `json:"trigger,omitempty"`
}

// Triggers for automatic promotion.
const (
	TriggerCrossConversation = "cross_conversation_access"
	TriggerPhiMid            = "phi_mid_threshold"
	TriggerPhiHigh           = "phi_high_threshold"
	TriggerCatalyst          = "confirmed_catalyst"
	TriggerHubBridge         = "hub_bridging"
	TriggerManualOverride    = "manual_override"
)

// TierEvaluator runs the active → thread → stable → network state machine.
// Evaluation is opportunistic (on access events) and idempotent: evaluating
// twice with unchanged inputs yields the same tier.
type TierEvaluator struct {
	store registrystore.MemoryStore
}

func NewTierEvaluator(store registrystore.MemoryStore) *TierEvaluator {
	return &TierEvaluator{store: store}
}

// Evaluate checks promotion conditions for one memory and applies at most
// one transition per call. Transitions only ever promote; demotion happens
// only through manual override.
func (t *TierEvaluator) Evaluate(ctx context.Context, id uuid.UUID, settings Settings) (*Transition, error) {
	m, err := t.store.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.TierOverridden && settings.OverrideSticky {
		return &Transition{Previous: m.Tier, New: m.Tier}, nil
	}

	next, trigger, err := t.promotion(ctx, m, settings)
	if err != nil {
		return nil, err
	}
	if next == m.Tier {
		return &Transition{Previous: m.Tier, New: m.Tier}, nil
	}
	if err := t.store.SetTier(ctx, id, next); err != nil {
		return nil, err
	}
	log.Info("Tier promotion", "memory_id", id, "from", m.Tier, "to", next, "trigger", trigger)
	metrics.TierTransitions.WithLabelValues(string(m.Tier), string(next)).Inc()
	return &Transition{Previous: m.Tier, New: next, Trigger: trigger}, nil
}

func (t *TierEvaluator) promotion(ctx context.Context, m *model.Memory, settings Settings) (model.Tier, string, error) {
	switch m.Tier {
	case model.TierActive:
		if len(m.AccessedInConversations) >= settings.MinConversations {
			return model.TierThread, TriggerCrossConversation, nil
		}
		if m.ResonancePhi >= settings.PhiMid {
			return model.TierThread, TriggerPhiMid, nil
		}
	case model.TierThread:
		if m.IsCatalyst {
			return model.TierStable, TriggerCatalyst, nil
		}
		if m.ResonancePhi >= settings.PhiHigh && m.AccessCount > 1 {
			return model.TierStable, TriggerPhiHigh, nil
		}
	case model.TierStable:
		isHub, err := t.isBridgingHub(ctx, m.ID, settings)
		if err != nil {
			return m.Tier, "", err
		}
		if isHub {
			return model.TierNetwork, TriggerHubBridge, nil
		}
	}
	return m.Tier, "", nil
}

// isBridgingHub reports whether the memory is a graph hub that bridges
// otherwise-disconnected neighbors: centrality above the configured floors
// plus at least one neighbor pair with no direct edge.
func (t *TierEvaluator) isBridgingHub(ctx context.Context, id uuid.UUID, settings Settings) (bool, error) {
	stats, err := t.store.HubStats(ctx, id)
	if err != nil {
		return false, err
	}
	if stats.Degree < settings.HubMinDegree || stats.StrengthSum < settings.HubMinStrength {
		return false, nil
	}
	neighbors, err := t.store.Neighbors(ctx, id, 0, int(stats.Degree))
	if err != nil {
		return false, err
	}
	ids := make([]uuid.UUID, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Memory.ID
	}
	if len(ids) < 2 {
		return false, nil
	}
	edges, err := t.store.CountEdgesAmong(ctx, ids)
	if err != nil {
		return false, err
	}
	// A fully-connected neighborhood has n(n-1)/2 internal edges; anything
	// less means this memory bridges at least one unlinked pair.
	n := int64(len(ids))
	return edges < n*(n-1)/2, nil
}

// Override applies a manual tier-set with a reason. It always succeeds for
// a live memory and a valid tier, bypassing automatic evaluation.
func (t *TierEvaluator) Override(ctx context.Context, id uuid.UUID, tier model.Tier, reason string) (*Transition, error) {
	if !tier.Valid() {
		return nil, &registrystore.InvalidTierError{Tier: string(tier)}
	}
	m, err := t.store.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := t.store.OverrideTier(ctx, id, tier, reason)
	if err != nil {
		return nil, err
	}
	log.Info("Tier override", "memory_id", id, "from", m.Tier, "to", updated.Tier, "reason", reason)
	metrics.TierTransitions.WithLabelValues(string(m.Tier), string(updated.Tier)).Inc()
	return &Transition{Previous: m.Tier, New: updated.Tier, Trigger: TriggerManualOverride}, nil
}
