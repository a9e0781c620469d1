package migrate

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/resonancelabs/resonance-service/internal/config"
	registrymigrate "github.com/resonancelabs/resonance-service/internal/registry/migrate"
	"github.com/urfave/cli/v3"

	// Import plugins to trigger init() registration of their migrators.
	// Store plugins register their own migrators alongside their primary interface.
	_ "github.com/resonancelabs/resonance-service/internal/plugin/store/postgres"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/store/sqlite"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/vector/chromem"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/vector/pgvector"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "db-url",
				Sources:     cli.EnvVars("RESONANCE_DB_URL"),
				Destination: &cfg.DBURL,
				Usage:       "Postgres connection URL",
			},
			&cli.StringFlag{
				Name:        "datastore-kind",
				Sources:     cli.EnvVars("RESONANCE_DATASTORE_KIND"),
				Destination: &cfg.DatastoreType,
				Value:       cfg.DatastoreType,
				Usage:       "Store backend (postgres|sqlite)",
			},
			&cli.StringFlag{
				Name:        "sqlite-path",
				Sources:     cli.EnvVars("RESONANCE_SQLITE_PATH"),
				Destination: &cfg.SQLitePath,
				Value:       cfg.SQLitePath,
				Usage:       "SQLite database file (sqlite backend)",
			},
			&cli.StringFlag{
				Name:        "vector-kind",
				Sources:     cli.EnvVars("RESONANCE_VECTOR_KIND"),
				Destination: &cfg.VectorType,
				Value:       cfg.VectorType,
				Usage:       "Vector store (pgvector|chromem)",
			},
			&cli.IntFlag{
				Name:        "embedding-dimensions",
				Sources:     cli.EnvVars("RESONANCE_EMBEDDING_DIMENSIONS"),
				Destination: &cfg.EmbedDimensions,
				Value:       cfg.EmbedDimensions,
				Usage:       "Embedding vector dimension baked into the vector schema",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.DatastoreMigrateAtStart = true
			cfg.VectorMigrateAtStart = true
			ctx = config.WithContext(ctx, &cfg)

			log.Info("Running migrations...")
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}
