package llm

import (
	"compare-app/internal/config"
	"compare-app/internal/logger"
	"fmt"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderGenkit     ProviderType = "genkit"
)

// ParseProviderType parses a string into a ProviderType
func ParseProviderType(s string) (ProviderType, error) {
	switch s {
	case "openrouter", "":
		return ProviderOpenRouter, nil
	case "genkit":
		return ProviderGenkit, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// NewStreamProvider creates a streaming provider based on the specified type
func NewStreamProvider(providerType ProviderType, llmConfig *config.LLMConfig, modelsConfig *config.ModelsConfig) (StreamProvider, error) {
	switch providerType {
	case ProviderOpenRouter:
		logger.Log.Info("Creating OpenRouter stream provider")
		return NewOpenRouterProvider(llmConfig, modelsConfig), nil
	case ProviderGenkit:
		logger.Log.Info("Creating Genkit stream provider")
		return NewGenkitProvider(llmConfig, modelsConfig)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// GetProviderFromConfig creates the configured provider, falling back to
// OpenRouter when the configured name is empty or invalid.
func GetProviderFromConfig(llmConfig *config.LLMConfig, modelsConfig *config.ModelsConfig) StreamProvider {
	providerType, err := ParseProviderType(llmConfig.Provider)
	if err != nil {
		logger.Log.WithError(err).Warnf("Invalid provider %q, defaulting to OpenRouter", llmConfig.Provider)
		providerType = ProviderOpenRouter
	}

	provider, err := NewStreamProvider(providerType, llmConfig, modelsConfig)
	if err != nil {
		logger.Log.WithError(err).Warnf("Error creating %s provider, falling back to OpenRouter", providerType)
		return NewOpenRouterProvider(llmConfig, modelsConfig)
	}

	return provider
}
