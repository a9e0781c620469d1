// Package fold provides a sub-command that runs one synthesis cycle
// synchronously and prints the outcome, for operators and cron-style
// deployments that prefer external scheduling over the built-in pulse.
package fold

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/resonancelabs/resonance-service/internal/cmd/serve"
	"github.com/resonancelabs/resonance-service/internal/config"
	"github.com/resonancelabs/resonance-service/internal/engine"
	registrymigrate "github.com/resonancelabs/resonance-service/internal/registry/migrate"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
	"github.com/urfave/cli/v3"
)

// Command returns the fold sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "fold",
		Usage: "Run one synthesis cycle and print the result",
		Flags: serve.Flags(&cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(config.WithContext(ctx, &cfg), &cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := registrymigrate.RunAll(ctx); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	embedder, err := serve.BuildEmbedder(ctx, cfg)
	if err != nil {
		return err
	}

	vectorLoader, err := registryvector.Select(cfg.VectorType)
	if err != nil {
		return err
	}
	vectorStore, err := vectorLoader(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}

	generator, err := serve.BuildGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	consolidator := engine.NewConsolidator(store, vectorStore, embedder, nil)
	tiers := engine.NewTierEvaluator(store)
	fold := engine.NewFold(store, vectorStore, consolidator, tiers, generator)

	settings := engine.LoadSettings(ctx, store)
	result, err := fold.RunCycle(ctx, settings)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
