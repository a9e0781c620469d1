// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MemoriesCreated counts novel memory inserts, labeled by source
	// ("store" for API writes, "fold" for syntheses).
	MemoriesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_memories_created_total",
		Help: "Number of novel memories created.",
	}, []string{"source"})

	// Consolidations counts dedup outcomes: "exact", "near_duplicate",
	// "novel".
	Consolidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_consolidations_total",
		Help: "Number of consolidation decisions by kind.",
	}, []string{"kind"})

	// FoldCycles counts fold cycle outcomes, one label value per typed
	// outcome (manifested, evolved, and each skip reason).
	FoldCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_fold_cycles_total",
		Help: "Number of fold cycles by outcome.",
	}, []string{"outcome"})

	// FoldCycleDuration observes wall time of full fold cycles.
	FoldCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "resonance_fold_cycle_duration_seconds",
		Help:    "Duration of fold cycles.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// TierTransitions counts automatic and manual tier changes.
	TierTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_tier_transitions_total",
		Help: "Number of tier transitions by from/to tier.",
	}, []string{"from", "to"})

	// AssociationsStrengthened counts edge create/strengthen events by
	// context.
	AssociationsStrengthened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_associations_strengthened_total",
		Help: "Number of association create/strengthen events.",
	}, []string{"context"})
)
