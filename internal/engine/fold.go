package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/resonancelabs/resonance-service/internal/metrics"
	"github.com/resonancelabs/resonance-service/internal/model"
	registrygenerate "github.com/resonancelabs/resonance-service/internal/registry/generate"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
	"github.com/resonancelabs/resonance-service/internal/resonance"
)

// Outcome is the definitive result of one fold cycle. Skip outcomes are
// expected non-results, not errors: "nothing to synthesize yet" is a normal
// steady state that operators need to tell apart from incoherent material.
type Outcome string

const (
	OutcomeInsufficientHubs      Outcome = "INSUFFICIENT_HUBS"
	OutcomeInsufficientDiversity Outcome = "INSUFFICIENT_DIVERSITY"
	OutcomeNoAnchor              Outcome = "NO_ANCHOR"
	OutcomeCoherenceTooLow       Outcome = "COHERENCE_TOO_LOW"
	OutcomeEvolved               Outcome = "EVOLVED"
	OutcomeManifested            Outcome = "MANIFESTED"
)

// Coherence gate details, distinguishing which gate rejected the triple.
const (
	GateConsonance     = "consonance"
	GateCoherenceScore = "coherence_score"
)

// CycleResult reports one fold cycle.
type CycleResult struct {
	Outcome        Outcome     `json:"outcome"`
	Gate           string      `json:"gate,omitempty"`
	MemoryID       *uuid.UUID  `json:"memoryId,omitempty"`
	AncestorIDs    []uuid.UUID `json:"ancestorIds,omitempty"`
	Consonance     float64     `json:"consonance,omitempty"`
	CoherenceScore float64     `json:"coherenceScore,omitempty"`
	StartedAt      time.Time   `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
}

const (
	hubCandidateLimit    = 64
	anchorCandidateLimit = 128

	synthesisSystemPrompt = "You weave distant ideas together. Given three fragments of stored knowledge, write a single short insight that reveals the latent connection between them. State the connection directly; do not describe the fragments."
)

// Fold runs the autonomous synthesis pipeline: hub selection, anchor
// selection, two quality gates, generation, and a single atomic
// manifestation. Each cycle produces at most one new memory.
type Fold struct {
	store        registrystore.MemoryStore
	vector       registryvector.VectorStore
	consolidator *Consolidator
	tiers        *TierEvaluator
	generator    registrygenerate.Generator
}

func NewFold(store registrystore.MemoryStore, vector registryvector.VectorStore, consolidator *Consolidator, tiers *TierEvaluator, generator registrygenerate.Generator) *Fold {
	return &Fold{store: store, vector: vector, consolidator: consolidator, tiers: tiers, generator: generator}
}

type candidate struct {
	memory    *model.Memory
	embedding []float32
}

// RunCycle executes one fold cycle. Skip reasons come back as results; an
// error means the cycle was abandoned (capability failure, store failure)
// with no durable state written.
func (f *Fold) RunCycle(ctx context.Context, settings Settings) (*CycleResult, error) {
	started := time.Now()
	result, err := f.runCycle(ctx, settings)
	if err != nil {
		return nil, err
	}
	result.StartedAt = started
	result.Duration = time.Since(started)
	metrics.FoldCycles.WithLabelValues(string(result.Outcome)).Inc()
	metrics.FoldCycleDuration.Observe(result.Duration.Seconds())
	log.Info("Fold cycle finished", "outcome", result.Outcome, "gate", result.Gate, "duration", result.Duration)
	return result, nil
}

func (f *Fold) runCycle(ctx context.Context, settings Settings) (*CycleResult, error) {
	// Step 1: hubs. Two high-phi memories maximizing cosine distance,
	// subject to the diversity floor.
	hubs, err := f.hubCandidates(ctx, settings)
	if err != nil {
		return nil, err
	}
	if len(hubs) < 2 {
		return &CycleResult{Outcome: OutcomeInsufficientHubs}, nil
	}
	hubA, hubB, hubDistance, err := mostDistantPair(hubs)
	if err != nil {
		return nil, err
	}
	if hubDistance < settings.MinHubDistance {
		return &CycleResult{Outcome: OutcomeInsufficientDiversity}, nil
	}

	// Step 2: anchor. A low-access memory with latent similarity to a hub.
	anchor, err := f.selectAnchor(ctx, hubA, hubB, settings)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return &CycleResult{Outcome: OutcomeNoAnchor}, nil
	}

	ancestors := []candidate{*hubA, *hubB, *anchor}
	ancestorIDs := []uuid.UUID{hubA.memory.ID, hubB.memory.ID, anchor.memory.ID}

	sims, err := pairwiseSimilarities(ancestors)
	if err != nil {
		return nil, err
	}

	// Gate A: consonance. The harmonic mean punishes a triple contaminated
	// by one weak link far harder than an average would.
	consonance, err := resonance.HarmonicMean(sims)
	if err != nil {
		return nil, err
	}
	if consonance < settings.MinConsonance {
		return &CycleResult{
			Outcome:     OutcomeCoherenceTooLow,
			Gate:        GateConsonance,
			AncestorIDs: ancestorIDs,
			Consonance:  consonance,
		}, nil
	}

	// Gate B: coherence score. Rejects triples too similar (duplication)
	// or too weak in resonance.
	coherenceScore := synthesisCoherence(ancestors, sims)
	if coherenceScore <= settings.MinCoherenceScore {
		return &CycleResult{
			Outcome:        OutcomeCoherenceTooLow,
			Gate:           GateCoherenceScore,
			AncestorIDs:    ancestorIDs,
			Consonance:     consonance,
			CoherenceScore: coherenceScore,
		}, nil
	}

	// Step 5: synthesize. A capability failure abandons only this cycle.
	text, err := f.generator.Generate(ctx, registrygenerate.Request{
		System:      synthesisSystemPrompt,
		Prompt:      synthesisPrompt(ancestors),
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis generation failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("synthesis generation returned empty text")
	}

	embedding, err := f.consolidator.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Step 6: convergence. A synthesis that lands on an existing memory is
	// evolution, routed through the consolidation near-duplicate path.
	if nearest, score, err := f.consolidator.nearest(ctx, embedding); err != nil {
		return nil, err
	} else if nearest != nil && score >= settings.EvolutionThreshold {
		return f.evolve(ctx, nearest, score, ancestorIDs, consonance, coherenceScore, settings)
	}

	// Step 7: manifest. Memory plus three synthetic edges in one
	// transaction, the sole durable commit point of the cycle.
	return f.manifest(ctx, text, embedding, ancestors, ancestorIDs, consonance, coherenceScore, settings)
}

func (f *Fold) evolve(ctx context.Context, existing *model.Memory, score float64, ancestorIDs []uuid.UUID, consonance, coherenceScore float64, settings Settings) (*CycleResult, error) {
	boost := ordinaryBoost
	if existing.IsCatalyst {
		boost = catalystBoost
	}
	if _, err := f.store.BoostPhi(ctx, existing.ID, boost); err != nil {
		return nil, err
	}
	if _, err := f.store.TouchAccess(ctx, existing.ID, ""); err != nil {
		return nil, err
	}
	if _, err := f.tiers.Evaluate(ctx, existing.ID, settings); err != nil {
		return nil, err
	}
	log.Info("Fold synthesis converged on existing memory", "memory_id", existing.ID, "similarity", score)
	id := existing.ID
	return &CycleResult{
		Outcome:        OutcomeEvolved,
		MemoryID:       &id,
		AncestorIDs:    ancestorIDs,
		Consonance:     consonance,
		CoherenceScore: coherenceScore,
	}, nil
}

func (f *Fold) manifest(ctx context.Context, text string, embedding []float32, ancestors []candidate, ancestorIDs []uuid.UUID, consonance, coherenceScore float64, settings Settings) (*CycleResult, error) {
	ancestorPhi := make([]float64, len(ancestors))
	generation := 1
	for i, a := range ancestors {
		ancestorPhi[i] = a.memory.ResonancePhi
		if g := foldGeneration(a.memory); g >= generation {
			generation = g + 1
		}
	}
	idStrings := make([]string, len(ancestorIDs))
	for i, id := range ancestorIDs {
		idStrings[i] = id.String()
	}

	m := &model.Memory{
		Content:      text,
		ContentHash:  ContentHash(text),
		Tier:         model.TierActive,
		ResonancePhi: settings.SynthesisPhi,
		Category:     model.CategoryFold,
		Source:       "fold",
		Metadata: map[string]interface{}{
			"ancestorIds":             idStrings,
			"ancestorPhiValues":       ancestorPhi,
			"synthesisCoherenceScore": coherenceScore,
			"foldGeneration":          generation,
		},
	}
	if err := f.store.ManifestSynthesis(ctx, m, ancestorIDs, settings.SyntheticStrength); err != nil {
		return nil, err
	}
	for range ancestorIDs {
		metrics.AssociationsStrengthened.WithLabelValues(model.AssociationContextSynthesis).Inc()
	}
	metrics.MemoriesCreated.WithLabelValues("fold").Inc()

	if err := f.vector.Upsert(ctx, m.ID, embedding, f.consolidator.embedder.ModelName()); err != nil {
		// The memory is committed; a failed index write is recoverable on
		// the next store of similar content, so log rather than unwind.
		log.Error("Failed to index synthesized memory", "memory_id", m.ID, "error", err)
	}
	if _, err := f.tiers.Evaluate(ctx, m.ID, settings); err != nil {
		return nil, err
	}
	id := m.ID
	return &CycleResult{
		Outcome:        OutcomeManifested,
		MemoryID:       &id,
		AncestorIDs:    ancestorIDs,
		Consonance:     consonance,
		CoherenceScore: coherenceScore,
	}, nil
}

// hubCandidates returns high-phi memories that have embeddings.
func (f *Fold) hubCandidates(ctx context.Context, settings Settings) ([]candidate, error) {
	memories, err := f.store.ListByMinPhi(ctx, settings.HubPhiMin, hubCandidateLimit)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for i := range memories {
		embedding, err := f.vector.GetEmbedding(ctx, memories[i].ID)
		if err != nil {
			return nil, err
		}
		if embedding == nil {
			continue
		}
		out = append(out, candidate{memory: &memories[i], embedding: embedding})
	}
	return out, nil
}

// selectAnchor picks the low-access memory most similar to either hub,
// requiring at least the configured minimum similarity.
func (f *Fold) selectAnchor(ctx context.Context, hubA, hubB *candidate, settings Settings) (*candidate, error) {
	memories, err := f.store.ListLowAccess(ctx, settings.AnchorMaxAccess, anchorCandidateLimit)
	if err != nil {
		return nil, err
	}
	var best *candidate
	bestSim := settings.AnchorMinSim
	for i := range memories {
		m := &memories[i]
		if m.ID == hubA.memory.ID || m.ID == hubB.memory.ID {
			continue
		}
		embedding, err := f.vector.GetEmbedding(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if embedding == nil {
			continue
		}
		simA, err := resonance.CosineSimilarity(embedding, hubA.embedding)
		if err != nil {
			return nil, err
		}
		simB, err := resonance.CosineSimilarity(embedding, hubB.embedding)
		if err != nil {
			return nil, err
		}
		sim := simA
		if simB > sim {
			sim = simB
		}
		if sim >= bestSim {
			bestSim = sim
			best = &candidate{memory: m, embedding: embedding}
		}
	}
	return best, nil
}

// mostDistantPair returns the two candidates maximizing cosine distance.
func mostDistantPair(candidates []candidate) (*candidate, *candidate, float64, error) {
	var a, b *candidate
	best := -1.0
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			d, err := resonance.CosineDistance(candidates[i].embedding, candidates[j].embedding)
			if err != nil {
				return nil, nil, 0, err
			}
			if d > best {
				best = d
				a, b = &candidates[i], &candidates[j]
			}
		}
	}
	return a, b, best, nil
}

// pairwiseSimilarities returns the three similarity values linking a triple.
func pairwiseSimilarities(ancestors []candidate) ([]float64, error) {
	var sims []float64
	for i := 0; i < len(ancestors); i++ {
		for j := i + 1; j < len(ancestors); j++ {
			s, err := resonance.CosineSimilarity(ancestors[i].embedding, ancestors[j].embedding)
			if err != nil {
				return nil, err
			}
			sims = append(sims, s)
		}
	}
	return sims, nil
}

// synthesisCoherence is Σ(ancestor phi) / avg(pairwise cosine distance).
// High when ancestors carry strong resonance at genuine distance.
func synthesisCoherence(ancestors []candidate, sims []float64) float64 {
	var phiSum float64
	for _, a := range ancestors {
		phiSum += a.memory.ResonancePhi
	}
	var distSum float64
	for _, s := range sims {
		distSum += 1 - s
	}
	avgDist := distSum / float64(len(sims))
	if avgDist <= 0 {
		// Identical ancestors; score them unusable.
		return 0
	}
	return phiSum / avgDist
}

func foldGeneration(m *model.Memory) int {
	if m.Metadata == nil {
		return 0
	}
	switch v := m.Metadata["foldGeneration"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func synthesisPrompt(ancestors []candidate) string {
	var b strings.Builder
	b.WriteString("Three memories:\n")
	for i, a := range ancestors {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, a.memory.Content)
	}
	b.WriteString("\nWrite the single insight that connects them.")
	return b.String()
}
