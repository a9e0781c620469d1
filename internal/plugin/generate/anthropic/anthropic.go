// Package anthropic generates synthesis text through the Anthropic Messages
// API. It is the default generator for fold cycles.
package anthropic

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/resonancelabs/resonance-service/internal/config"
	registrygenerate "github.com/resonancelabs/resonance-service/internal/registry/generate"
)

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registrygenerate.Register(registrygenerate.Plugin{
		Name: "anthropic",
		Loader: func(ctx context.Context) (registrygenerate.Generator, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.AnthropicAPIKey == "" {
				return nil, fmt.Errorf("anthropic generator: RESONANCE_ANTHROPIC_API_KEY is required")
			}
			client := anthropicsdk.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
			return &Generator{client: &client, model: cfg.AnthropicModelName}, nil
		},
	})
}

type Generator struct {
	client *anthropicsdk.Client
	model  string
}

func (g *Generator) Name() string { return "anthropic" }

func (g *Generator) Generate(ctx context.Context, req registrygenerate.Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic generate: empty response")
	}
	return text, nil
}
