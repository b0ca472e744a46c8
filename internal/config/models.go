package config

import (
	"encoding/json"
	"os"
)

// Model represents an available LLM model
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Tier     string `json:"tier"`
}

// ModelsConfig holds the available models configuration
type ModelsConfig struct {
	models []Model
}

// NewModelsConfig creates a new models configuration from a file
func NewModelsConfig(configPath string) (*ModelsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var models []Model
	err = json.Unmarshal(data, &models)
	if err != nil {
		return nil, err
	}

	return &ModelsConfig{models: models}, nil
}

// NewModelsConfigFromModels creates a models configuration from an in-memory list.
// Used by tests and by deployments that inject the catalog directly.
func NewModelsConfigFromModels(models []Model) *ModelsConfig {
	return &ModelsConfig{models: models}
}

// GetAvailableModels returns the list of available models
func (mc *ModelsConfig) GetAvailableModels() []Model {
	return mc.models
}

// GetModelsForPlan returns the models a plan tier is allowed to use.
// Free-tier models are available to everyone; paid models require the pro plan.
func (mc *ModelsConfig) GetModelsForPlan(plan string) []Model {
	allowed := make([]Model, 0, len(mc.models))
	for _, model := range mc.models {
		if model.Tier == "free" || plan == "pro" {
			allowed = append(allowed, model)
		}
	}
	return allowed
}

// IsValidModel checks if a model ID is in the list of available models
func (mc *ModelsConfig) IsValidModel(modelID string) bool {
	for _, model := range mc.models {
		if model.ID == modelID {
			return true
		}
	}
	return false
}

// IsModelAllowedForPlan checks whether a plan tier may use the given model
func (mc *ModelsConfig) IsModelAllowedForPlan(modelID, plan string) bool {
	for _, model := range mc.models {
		if model.ID == modelID {
			return model.Tier == "free" || plan == "pro"
		}
	}
	return false
}

// GetDefaultModel returns the first model as the default
func (mc *ModelsConfig) GetDefaultModel() string {
	if len(mc.models) > 0 {
		return mc.models[0].ID
	}
	// Fallback in case no models are configured (shouldn't happen)
	return "meta-llama/llama-3.3-8b-instruct:free"
}
