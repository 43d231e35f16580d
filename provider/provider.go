package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/models"
	openai_provider "github.com/zainabsaad99/EECE798S-Project/provider/openai"
)

// Provider is the interface all LLM implementations must satisfy
type Provider interface {
	// Completion runs one chat turn. The returned message carries either
	// assistant text or one or more tool calls.
	Completion(ctx context.Context, req models.ChatRequest) (models.ChatResult, error)
	// StreamCompletion behaves like Completion but forwards assistant text
	// fragments to onDelta as they arrive from the token stream.
	StreamCompletion(ctx context.Context, req models.ChatRequest, onDelta func(string)) (models.ChatResult, error)
	// CreateEmbedding returns one vector per input text.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	// SummarizeImage describes an image post in a couple of sentences.
	SummarizeImage(ctx context.Context, imageURL string) (string, error)
	// CalculateCost prices a request against the configured model rates.
	CalculateCost(inputTokens, outputTokens int64, model string) float64
	// ResolveModel maps a routing task (agent, analysis, synthesis,
	// embedding) to a configured model key.
	ResolveModel(task string) string
}

// NewProvider creates an LLM provider from configuration. An apiKeyOverride,
// when set, takes precedence over the configured key so request-scoped
// credentials never leak into shared state.
func NewProvider(cfg config.LLMConfig, apiKeyOverride string) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no LLM providers configured")
	}
	for _, p := range cfg.Providers {
		switch p.Type {
		case "openai", "":
			if apiKeyOverride != "" {
				p.APIKey = apiKeyOverride
			}
			return openai_provider.NewClient(p, cfg.Routing), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", p.Type)
		}
	}
	return nil, errors.New("no valid LLM providers found")
}
