// Package openai generates synthesis text through an OpenAI-compatible chat
// completions endpoint. It serves as the fallback generator.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/resonancelabs/resonance-service/internal/config"
	registrygenerate "github.com/resonancelabs/resonance-service/internal/registry/generate"
)

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registrygenerate.Register(registrygenerate.Plugin{
		Name: "openai",
		Loader: func(ctx context.Context) (registrygenerate.Generator, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.OpenAIAPIKey == "" {
				return nil, fmt.Errorf("openai generator: RESONANCE_OPENAI_API_KEY is required")
			}
			return &Generator{
				apiKey:  cfg.OpenAIAPIKey,
				model:   cfg.OpenAIChatModelName,
				baseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"),
			}, nil
		},
	})
}

type Generator struct {
	apiKey  string
	model   string
	baseURL string
}

func (g *Generator) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Generator) Generate(ctx context.Context, genReq registrygenerate.Request) (string, error) {
	messages := []chatMessage{}
	if genReq.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: genReq.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: genReq.Prompt})

	body := chatRequest{Model: g.model, Messages: messages}
	if genReq.Temperature > 0 {
		body.Temperature = &genReq.Temperature
	}
	if genReq.MaxTokens > 0 {
		body.MaxTokens = &genReq.MaxTokens
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai generate request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai generate: read response: %w", err)
	}
	var result chatResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("openai generate: parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("openai generate error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai generate: empty response")
	}
	return result.Choices[0].Message.Content, nil
}
