package serve

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/resonancelabs/resonance-service/internal/config"
	registrycache "github.com/resonancelabs/resonance-service/internal/registry/cache"
	registryembed "github.com/resonancelabs/resonance-service/internal/registry/embed"
	registrygenerate "github.com/resonancelabs/resonance-service/internal/registry/generate"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
	"github.com/urfave/cli/v3"

	// Import all plugins to trigger init() registration
	_ "github.com/resonancelabs/resonance-service/internal/plugin/cache/noop"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/cache/redis"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/cache/ristretto"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/embed/mock"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/embed/openai"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/generate/anthropic"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/generate/openai"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/route/system"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/store/postgres"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/store/sqlite"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/vector/chromem"
	_ "github.com/resonancelabs/resonance-service/internal/plugin/vector/pgvector"
)

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the resonance service HTTP server",
		Flags: Flags(&cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(config.WithContext(ctx, &cfg), &cfg)
		},
	}
}

// Flags binds the serve flags and their RESONANCE_* env vars onto cfg.
// The fold sub-command reuses these so a one-shot cycle sees the same
// configuration as a running server.
func Flags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{

		// ── Server ────────────────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Server:",
			Sources:     cli.EnvVars("RESONANCE_PORT"),
			Destination: &cfg.Port,
			Value:       cfg.Port,
			Usage:       "HTTP server port",
		},
		&cli.DurationFlag{
			Name:        "read-header-timeout",
			Category:    "Server:",
			Sources:     cli.EnvVars("RESONANCE_READ_HEADER_TIMEOUT"),
			Destination: &cfg.ReadHeaderTimeout,
			Value:       cfg.ReadHeaderTimeout,
			Usage:       "HTTP read header timeout",
		},
		&cli.DurationFlag{
			Name:        "drain-timeout",
			Category:    "Server:",
			Sources:     cli.EnvVars("RESONANCE_DRAIN_TIMEOUT"),
			Destination: &cfg.DrainTimeout,
			Value:       cfg.DrainTimeout,
			Usage:       "Graceful shutdown drain timeout",
		},

		// ── Datastore ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "datastore-kind",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("RESONANCE_DATASTORE_KIND"),
			Destination: &cfg.DatastoreType,
			Value:       cfg.DatastoreType,
			Usage:       "Backend store (" + strings.Join(registrystore.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("RESONANCE_DB_URL"),
			Destination: &cfg.DBURL,
			Usage:       "Postgres connection URL",
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("RESONANCE_SQLITE_PATH"),
			Destination: &cfg.SQLitePath,
			Value:       cfg.SQLitePath,
			Usage:       "SQLite database file (sqlite backend)",
		},
		&cli.BoolFlag{
			Name:        "datastore-migrate-at-start",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("RESONANCE_DATASTORE_MIGRATE_AT_START"),
			Destination: &cfg.DatastoreMigrateAtStart,
			Value:       cfg.DatastoreMigrateAtStart,
			Usage:       "Run datastore migrations at startup",
		},
		&cli.IntFlag{
			Name:        "db-max-open-conns",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("RESONANCE_DB_MAX_OPEN_CONNS"),
			Destination: &cfg.DBMaxOpenConns,
			Value:       cfg.DBMaxOpenConns,
			Usage:       "Maximum number of open database connections",
		},
		&cli.IntFlag{
			Name:        "db-max-idle-conns",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("RESONANCE_DB_MAX_IDLE_CONNS"),
			Destination: &cfg.DBMaxIdleConns,
			Value:       cfg.DBMaxIdleConns,
			Usage:       "Maximum number of idle database connections",
		},

		// ── Vector Store ──────────────────────────────────────────
		&cli.StringFlag{
			Name:        "vector-kind",
			Category:    "Vector Store:",
			Sources:     cli.EnvVars("RESONANCE_VECTOR_KIND"),
			Destination: &cfg.VectorType,
			Value:       cfg.VectorType,
			Usage:       "Vector store (" + strings.Join(registryvector.Names(), "|") + ")",
		},
		&cli.BoolFlag{
			Name:        "vector-migrate-at-start",
			Category:    "Vector Store:",
			Sources:     cli.EnvVars("RESONANCE_VECTOR_MIGRATE_AT_START"),
			Destination: &cfg.VectorMigrateAtStart,
			Value:       cfg.VectorMigrateAtStart,
			Usage:       "Run vector store migrations at startup",
		},
		&cli.StringFlag{
			Name:        "chromem-path",
			Category:    "Vector Store:",
			Sources:     cli.EnvVars("RESONANCE_CHROMEM_PATH"),
			Destination: &cfg.ChromemPath,
			Usage:       "Chromem persistence directory (empty = in-memory)",
		},

		// ── Embedding ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "embedding-kind",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("RESONANCE_EMBEDDING_KIND"),
			Destination: &cfg.EmbedType,
			Value:       cfg.EmbedType,
			Usage:       "Embedding provider (" + strings.Join(registryembed.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "embedding-fallback-kind",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("RESONANCE_EMBEDDING_FALLBACK_KIND"),
			Destination: &cfg.EmbedFallbackType,
			Usage:       "Fallback embedding provider tried when the primary is down",
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("RESONANCE_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.EmbedDimensions,
			Value:       cfg.EmbedDimensions,
			Usage:       "Embedding vector dimension, validated on every write",
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("RESONANCE_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &cfg.OpenAIAPIKey,
			Usage:       "OpenAI API key",
		},
		&cli.StringFlag{
			Name:        "openai-embedding-model",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("RESONANCE_OPENAI_EMBEDDING_MODEL"),
			Destination: &cfg.OpenAIModelName,
			Value:       cfg.OpenAIModelName,
			Usage:       "OpenAI embedding model name",
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("RESONANCE_OPENAI_BASE_URL"),
			Destination: &cfg.OpenAIBaseURL,
			Value:       cfg.OpenAIBaseURL,
			Usage:       "OpenAI-compatible API base URL",
		},

		// ── Generation ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "generate-kind",
			Category:    "Generation:",
			Sources:     cli.EnvVars("RESONANCE_GENERATE_KIND"),
			Destination: &cfg.GenerateType,
			Value:       cfg.GenerateType,
			Usage:       "Generation provider (" + strings.Join(registrygenerate.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "generate-fallback-kind",
			Category:    "Generation:",
			Sources:     cli.EnvVars("RESONANCE_GENERATE_FALLBACK_KIND"),
			Destination: &cfg.GenerateFallbackType,
			Usage:       "Fallback generation provider tried when the primary is down",
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Category:    "Generation:",
			Sources:     cli.EnvVars("RESONANCE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"),
			Destination: &cfg.AnthropicAPIKey,
			Usage:       "Anthropic API key",
		},
		&cli.StringFlag{
			Name:        "anthropic-model",
			Category:    "Generation:",
			Sources:     cli.EnvVars("RESONANCE_ANTHROPIC_MODEL"),
			Destination: &cfg.AnthropicModelName,
			Value:       cfg.AnthropicModelName,
			Usage:       "Anthropic model name",
		},
		&cli.StringFlag{
			Name:        "openai-chat-model",
			Category:    "Generation:",
			Sources:     cli.EnvVars("RESONANCE_OPENAI_CHAT_MODEL"),
			Destination: &cfg.OpenAIChatModelName,
			Value:       cfg.OpenAIChatModelName,
			Usage:       "OpenAI chat model name (openai generation)",
		},

		// ── Capability Retry Policy ───────────────────────────────
		&cli.IntFlag{
			Name:        "capability-max-attempts",
			Category:    "Capability Retry Policy:",
			Sources:     cli.EnvVars("RESONANCE_CAPABILITY_MAX_ATTEMPTS"),
			Destination: &cfg.CapabilityMaxAttempts,
			Value:       cfg.CapabilityMaxAttempts,
			Usage:       "Attempts per provider before failing over",
		},
		&cli.DurationFlag{
			Name:        "capability-backoff-initial",
			Category:    "Capability Retry Policy:",
			Sources:     cli.EnvVars("RESONANCE_CAPABILITY_BACKOFF_INITIAL"),
			Destination: &cfg.CapabilityBackoffInitial,
			Value:       cfg.CapabilityBackoffInitial,
			Usage:       "Initial retry backoff",
		},
		&cli.DurationFlag{
			Name:        "capability-backoff-max",
			Category:    "Capability Retry Policy:",
			Sources:     cli.EnvVars("RESONANCE_CAPABILITY_BACKOFF_MAX"),
			Destination: &cfg.CapabilityBackoffMax,
			Value:       cfg.CapabilityBackoffMax,
			Usage:       "Retry backoff ceiling",
		},
		&cli.DurationFlag{
			Name:        "capability-timeout",
			Category:    "Capability Retry Policy:",
			Sources:     cli.EnvVars("RESONANCE_CAPABILITY_TIMEOUT"),
			Destination: &cfg.CapabilityTimeout,
			Value:       cfg.CapabilityTimeout,
			Usage:       "Per-attempt timeout for provider calls",
		},

		// ── Cache ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "cache-kind",
			Category:    "Cache:",
			Sources:     cli.EnvVars("RESONANCE_CACHE_KIND"),
			Destination: &cfg.CacheType,
			Value:       cfg.CacheType,
			Usage:       "Embedding cache backend (" + strings.Join(registrycache.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Cache:",
			Sources:     cli.EnvVars("RESONANCE_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis connection URL (redis cache backend)",
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Category:    "Cache:",
			Sources:     cli.EnvVars("RESONANCE_CACHE_TTL"),
			Destination: &cfg.CacheTTL,
			Value:       cfg.CacheTTL,
			Usage:       "Embedding cache entry TTL",
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	srv, err := StartServer(ctx, cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}
