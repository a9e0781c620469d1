// Package capability wraps the external model providers (embedders and
// generators) with retry, failover, timeouts, and result validation. Engine
// code talks to a capability, never to a provider plugin directly.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/resonancelabs/resonance-service/internal/config"
	registryembed "github.com/resonancelabs/resonance-service/internal/registry/embed"
	registrygenerate "github.com/resonancelabs/resonance-service/internal/registry/generate"
)

// ErrUnavailable reports that the primary and every fallback provider
// failed. Callers surface it as a service-unavailable condition; nothing is
// persisted on this path.
var ErrUnavailable = errors.New("capability unavailable: all providers failed")

// DimensionMismatchError reports an embedding whose length does not match
// the configured dimensionality. It is never retried.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Options carry the retry policy, shared by both capabilities.
type Options struct {
	MaxAttempts    uint64
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Timeout        time.Duration
}

// OptionsFromConfig reads the policy from service config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxAttempts:    uint64(cfg.CapabilityMaxAttempts),
		BackoffInitial: cfg.CapabilityBackoffInitial,
		BackoffMax:     cfg.CapabilityBackoffMax,
		Timeout:        cfg.CapabilityTimeout,
	}
}

func (o Options) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.BackoffInitial
	b.MaxInterval = o.BackoffMax
	attempts := o.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx)
}

// FailoverEmbedder tries the primary embedder with retries, then each
// fallback in order. Every returned vector is validated against the
// configured dimension before anything downstream sees it.
type FailoverEmbedder struct {
	providers []registryembed.Embedder
	dimension int
	opts      Options
}

// NewFailoverEmbedder builds the chain. The first provider is primary.
func NewFailoverEmbedder(dimension int, opts Options, providers ...registryembed.Embedder) *FailoverEmbedder {
	return &FailoverEmbedder{providers: providers, dimension: dimension, opts: opts}
}

// ModelName reports the primary provider's model.
func (f *FailoverEmbedder) ModelName() string {
	if len(f.providers) == 0 {
		return ""
	}
	return f.providers[0].ModelName()
}

func (f *FailoverEmbedder) Dimension() int { return f.dimension }

// EmbedTexts embeds through the chain. A dimension mismatch is a permanent
// error for that provider: retrying cannot change a model's output size.
func (f *FailoverEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var lastErr error
	for _, provider := range f.providers {
		embeddings, err := f.embedWithRetry(ctx, provider, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		log.Warn("Embedder failed, trying next provider", "model", provider.ModelName(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return nil, ErrUnavailable
}

func (f *FailoverEmbedder) embedWithRetry(ctx context.Context, provider registryembed.Embedder, texts []string) ([][]float32, error) {
	var out [][]float32
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
		embeddings, err := provider.EmbedTexts(attemptCtx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(texts) {
			return backoff.Permanent(fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts)))
		}
		for _, e := range embeddings {
			if f.dimension > 0 && len(e) != f.dimension {
				return backoff.Permanent(&DimensionMismatchError{Want: f.dimension, Got: len(e)})
			}
		}
		out = embeddings
		return nil
	}
	if err := backoff.Retry(operation, f.opts.newBackoff(ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

// FailoverGenerator tries the primary generator with retries, then each
// fallback in order.
type FailoverGenerator struct {
	providers []registrygenerate.Generator
	opts      Options
}

// NewFailoverGenerator builds the chain. The first provider is primary.
func NewFailoverGenerator(opts Options, providers ...registrygenerate.Generator) *FailoverGenerator {
	return &FailoverGenerator{providers: providers, opts: opts}
}

// Name reports the primary provider.
func (f *FailoverGenerator) Name() string {
	if len(f.providers) == 0 {
		return ""
	}
	return f.providers[0].Name()
}

func (f *FailoverGenerator) Generate(ctx context.Context, req registrygenerate.Request) (string, error) {
	var lastErr error
	for _, provider := range f.providers {
		text, err := f.generateWithRetry(ctx, provider, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.Warn("Generator failed, trying next provider", "name", provider.Name(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return "", ErrUnavailable
}

func (f *FailoverGenerator) generateWithRetry(ctx context.Context, provider registrygenerate.Generator, req registrygenerate.Request) (string, error) {
	var out string
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
		text, err := provider.Generate(attemptCtx, req)
		if err != nil {
			return err
		}
		out = text
		return nil
	}
	if err := backoff.Retry(operation, f.opts.newBackoff(ctx)); err != nil {
		return "", err
	}
	return out, nil
}
