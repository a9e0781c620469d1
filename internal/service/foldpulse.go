// Package service holds the background workers that run alongside the HTTP
// process.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/resonancelabs/resonance-service/internal/engine"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
)

// FoldPulse periodically runs fold cycles. The interval and enablement are
// settings re-read at every tick, so operators can retune a live process.
type FoldPulse struct {
	store registrystore.MemoryStore
	fold  *engine.Fold

	mu   sync.RWMutex
	last *engine.CycleResult
}

func NewFoldPulse(store registrystore.MemoryStore, fold *engine.Fold) *FoldPulse {
	return &FoldPulse{store: store, fold: fold}
}

// Start begins the pulse loop. Returns when ctx is cancelled.
func (p *FoldPulse) Start(ctx context.Context) {
	for {
		settings := engine.LoadSettings(ctx, p.store)
		interval := settings.PulseInterval
		if interval <= 0 {
			interval = time.Hour
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if ctx.Err() != nil {
			return
		}
		settings = engine.LoadSettings(ctx, p.store)
		if !settings.PulseEnabled {
			continue
		}
		p.runOnce(ctx, settings)
	}
}

// Trigger runs one cycle immediately, recording the result.
func (p *FoldPulse) Trigger(ctx context.Context) (*engine.CycleResult, error) {
	settings := engine.LoadSettings(ctx, p.store)
	result, err := p.fold.RunCycle(ctx, settings)
	if err != nil {
		return nil, err
	}
	p.setLast(result)
	return result, nil
}

// Last returns the most recent cycle result, or nil before the first cycle.
func (p *FoldPulse) Last() *engine.CycleResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

func (p *FoldPulse) runOnce(ctx context.Context, settings engine.Settings) {
	result, err := p.fold.RunCycle(ctx, settings)
	if err != nil {
		// A failed cycle abandons only itself; the pulse keeps ticking.
		log.Error("Fold pulse: cycle failed", "err", err)
		return
	}
	p.setLast(result)
}

func (p *FoldPulse) setLast(result *engine.CycleResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = result
}
