package migrate

import (
	"context"
	"sort"
)

// Migrator applies one schema migration. Implementations decide from config
// whether they apply to the current deployment.
type Migrator interface {
	Name() string
	Migrate(ctx context.Context) error
}

// Plugin pairs a migrator with an ordering key.
type Plugin struct {
	Order    int
	Migrator Migrator
}

var plugins []Plugin

// Register adds a migration plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// RunAll executes all registered migrators in order.
func RunAll(ctx context.Context) error {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	for _, p := range sorted {
		if err := p.Migrator.Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}
