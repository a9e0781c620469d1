package config

import (
	"context"
	"time"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds process-level configuration for the resonance service.
// Runtime tunables (thresholds, pulse cadence) live in the settings table
// instead, so they can change without a restart; see engine.Settings.
type Config struct {
	// Datastore backend type: "postgres" or "sqlite".
	DatastoreType string

	// DBURL is the postgres connection string.
	DBURL string

	// SQLitePath is the sqlite database file. ":memory:" is accepted.
	SQLitePath string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Vector store type: "pgvector" or "chromem".
	VectorType string

	// Run vector migrations on startup.
	VectorMigrateAtStart bool

	// ChromemPath persists the chromem index; empty keeps it in memory.
	ChromemPath string

	// EmbedDimensions is the fixed embedding dimension for this deployment.
	// Every embedding write is validated against it.
	EmbedDimensions int

	// Embedding provider chain: primary and optional fallback, tried in
	// order by the capability failover wrapper.
	EmbedType         string // "openai" or "mock"
	EmbedFallbackType string

	// OpenAI (embeddings and the "openai" generator)
	OpenAIAPIKey    string
	OpenAIModelName string
	OpenAIBaseURL   string

	// Generator provider chain.
	GenerateType         string // "anthropic" or "openai"
	GenerateFallbackType string

	// Anthropic
	AnthropicAPIKey    string
	AnthropicModelName string

	// OpenAIChatModelName is the chat model used by the openai generator.
	OpenAIChatModelName string

	// Capability retry policy: attempts per provider and the backoff ceiling.
	CapabilityMaxAttempts    int
	CapabilityBackoffInitial time.Duration
	CapabilityBackoffMax     time.Duration
	CapabilityTimeout        time.Duration

	// Embedding cache type: "ristretto", "redis", or "none".
	CacheType string
	RedisURL  string
	CacheTTL  time.Duration

	// Server
	Port              int
	ReadHeaderTimeout time.Duration
	DrainTimeout      time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DatastoreType:            "postgres",
		DatastoreMigrateAtStart:  true,
		SQLitePath:               "resonance.db",
		DBMaxOpenConns:           25,
		DBMaxIdleConns:           5,
		VectorType:               "pgvector",
		VectorMigrateAtStart:     true,
		EmbedDimensions:          768,
		EmbedType:                "openai",
		OpenAIModelName:          "text-embedding-3-small",
		OpenAIBaseURL:            "https://api.openai.com/v1",
		OpenAIChatModelName:      "gpt-4o-mini",
		GenerateType:             "anthropic",
		AnthropicModelName:       "claude-sonnet-4-20250514",
		CapabilityMaxAttempts:    3,
		CapabilityBackoffInitial: 500 * time.Millisecond,
		CapabilityBackoffMax:     8 * time.Second,
		CapabilityTimeout:        30 * time.Second,
		CacheType:                "ristretto",
		CacheTTL:                 10 * time.Minute,
		Port:                     8080,
		ReadHeaderTimeout:        5 * time.Second,
		DrainTimeout:             30 * time.Second,
	}
}
