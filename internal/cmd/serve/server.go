package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/resonancelabs/resonance-service/internal/capability"
	"github.com/resonancelabs/resonance-service/internal/config"
	"github.com/resonancelabs/resonance-service/internal/engine"
	routeassociations "github.com/resonancelabs/resonance-service/internal/plugin/route/associations"
	routefold "github.com/resonancelabs/resonance-service/internal/plugin/route/fold"
	routememories "github.com/resonancelabs/resonance-service/internal/plugin/route/memories"
	routesystem "github.com/resonancelabs/resonance-service/internal/plugin/route/system"
	registrycache "github.com/resonancelabs/resonance-service/internal/registry/cache"
	registryembed "github.com/resonancelabs/resonance-service/internal/registry/embed"
	registrygenerate "github.com/resonancelabs/resonance-service/internal/registry/generate"
	registrymigrate "github.com/resonancelabs/resonance-service/internal/registry/migrate"
	registryroute "github.com/resonancelabs/resonance-service/internal/registry/route"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	registryvector "github.com/resonancelabs/resonance-service/internal/registry/vector"
	"github.com/resonancelabs/resonance-service/internal/service"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config *config.Config
	Store  registrystore.MemoryStore
	Router *gin.Engine
	Pulse  *service.FoldPulse
	http   *http.Server
}

// Shutdown gracefully drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// StartServer runs migrations, loads the configured plugins, builds the
// lifecycle engine, and serves the HTTP API. Background services (fold pulse,
// association decay) run until ctx is cancelled.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting resonance service",
		"port", cfg.Port,
		"db", cfg.DatastoreType,
		"vector", cfg.VectorType,
		"embedding", cfg.EmbedType,
		"generate", cfg.GenerateType,
		"cache", cfg.CacheType,
	)

	// Run migrations
	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// Embedding cache is optional: a failed load degrades to always-miss.
	var embedCache registrycache.EmbeddingCache
	if cacheLoader, err := registrycache.Select(cfg.CacheType); err != nil {
		log.Warn("Cache not available", "cache", cfg.CacheType, "err", err)
	} else if c, err := cacheLoader(ctx); err != nil {
		log.Warn("Failed to initialize cache", "cache", cfg.CacheType, "err", err)
	} else {
		embedCache = c
	}

	// Initialize store
	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	// Embedder chain: primary plus optional fallback behind retry/failover.
	embedder, err := BuildEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Initialize vector store
	vectorLoader, err := registryvector.Select(cfg.VectorType)
	if err != nil {
		return nil, err
	}
	vectorStore, err := vectorLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	// Generator chain, same failover shape as the embedder.
	generator, err := BuildGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Lifecycle engine
	consolidator := engine.NewConsolidator(store, vectorStore, embedder, embedCache)
	tiers := engine.NewTierEvaluator(store)
	associator := engine.NewAssociator(store)
	fold := engine.NewFold(store, vectorStore, consolidator, tiers, generator)

	pulse := service.NewFoldPulse(store, fold)
	decay := service.NewAssociationDecay(store)

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLogMiddleware("/health", "/ready", "/metrics"))

	// Dependency-free routes register themselves; the rest mount here.
	for _, loader := range registryroute.Loaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}
	routememories.MountRoutes(router, store, vectorStore, consolidator, tiers, associator)
	routeassociations.MountRoutes(router, associator)
	routefold.MountRoutes(router, pulse)
	routesystem.MountRoutes(router, store)

	// Start background services
	go pulse.Start(ctx)
	go decay.Start(ctx)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "err", err)
		}
	}()

	log.Info("Server listening", "port", cfg.Port)
	routesystem.MarkReady()

	return &Server{
		Config: cfg,
		Store:  store,
		Router: router,
		Pulse:  pulse,
		http:   httpServer,
	}, nil
}

// BuildEmbedder assembles the failover embedding chain from config. The fold
// sub-command reuses it for one-shot cycles.
func BuildEmbedder(ctx context.Context, cfg *config.Config) (registryembed.Embedder, error) {
	var providers []registryembed.Embedder
	for _, kind := range []string{cfg.EmbedType, cfg.EmbedFallbackType} {
		if kind == "" || kind == "none" {
			continue
		}
		loader, err := registryembed.Select(kind)
		if err != nil {
			return nil, err
		}
		provider, err := loader(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder %q: %w", kind, err)
		}
		providers = append(providers, provider)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no embedding provider configured: set --embedding-kind")
	}
	return capability.NewFailoverEmbedder(cfg.EmbedDimensions, capability.OptionsFromConfig(cfg), providers...), nil
}

// BuildGenerator assembles the failover generation chain from config.
func BuildGenerator(ctx context.Context, cfg *config.Config) (registrygenerate.Generator, error) {
	var providers []registrygenerate.Generator
	for _, kind := range []string{cfg.GenerateType, cfg.GenerateFallbackType} {
		if kind == "" || kind == "none" {
			continue
		}
		loader, err := registrygenerate.Select(kind)
		if err != nil {
			return nil, err
		}
		provider, err := loader(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generator %q: %w", kind, err)
		}
		providers = append(providers, provider)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no generation provider configured: set --generate-kind")
	}
	return capability.NewFailoverGenerator(capability.OptionsFromConfig(cfg), providers...), nil
}

// accessLogMiddleware logs each request, skipping the given paths.
func accessLogMiddleware(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
