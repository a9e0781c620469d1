package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/resonancelabs/resonance-service/internal/engine"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
)

// AssociationDecay periodically multiplies every association strength by a
// decay factor and drops edges that fall below the floor. This is the only
// path that ever lowers a strength; it is disabled by default.
type AssociationDecay struct {
	store registrystore.MemoryStore
}

func NewAssociationDecay(store registrystore.MemoryStore) *AssociationDecay {
	return &AssociationDecay{store: store}
}

// Start begins the decay loop. Returns when ctx is cancelled.
func (d *AssociationDecay) Start(ctx context.Context) {
	for {
		settings := engine.LoadSettings(ctx, d.store)
		interval := settings.DecayInterval
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if ctx.Err() != nil {
			return
		}
		settings = engine.LoadSettings(ctx, d.store)
		if !settings.DecayEnabled {
			continue
		}
		decayed, dropped, err := d.store.DecayAssociations(ctx, settings.DecayFactor, settings.DecayFloor)
		if err != nil {
			log.Error("Association decay failed", "err", err)
			continue
		}
		if decayed > 0 || dropped > 0 {
			log.Info("Association decay applied", "decayed", decayed, "dropped", dropped, "factor", settings.DecayFactor)
		}
	}
}
