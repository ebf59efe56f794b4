package provider

import (
	"context"
	"errors"

	"github.com/nithiin7/deep-research-app/config"
	openai_provider "github.com/nithiin7/deep-research-app/provider/openai"
)

// LLMProvider is the interface that all LLM implementations must satisfy
type LLMProvider interface {
	// Generate generates text using the LLM
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)

	// GenerateWithTokens generates text and returns token usage
	GenerateWithTokens(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, int64, int64, error)

	// CalculateCost calculates the cost for a given number of tokens
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// NewLLMProvider creates a new LLM provider based on configuration
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key not configured")
	}
	return openai_provider.NewClient(cfg), nil
}
