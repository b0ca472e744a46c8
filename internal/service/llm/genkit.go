package llm

import (
	"compare-app/internal/config"
	"compare-app/internal/logger"
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
)

// GenkitProvider implements StreamProvider using Firebase Genkit with
// OpenRouter via compat_oai. Genkit does not surface reasoning deltas, so
// streams from this provider carry text deltas only.
type GenkitProvider struct {
	genkit *genkit.Genkit
	config *config.LLMConfig
	models *config.ModelsConfig
}

// NewGenkitProvider creates a new Genkit provider instance configured for OpenRouter
func NewGenkitProvider(llmConfig *config.LLMConfig, modelsConfig *config.ModelsConfig) (*GenkitProvider, error) {
	apiKey := llmConfig.OpenRouterAPIKey
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not configured")
	}

	ctx := context.Background()

	defaultModel := modelsConfig.GetDefaultModel()

	// Initialize Genkit with OpenRouter plugin
	g := genkit.Init(ctx,
		genkit.WithPlugins(&compat_oai.OpenAICompatible{
			Provider: "openrouter",
			APIKey:   apiKey,
			BaseURL:  "https://openrouter.ai/api/v1",
		}),
		genkit.WithDefaultModel("openrouter/"+defaultModel),
	)

	logger.Log.WithField("default_model", defaultModel).Info("Initialized Genkit with OpenRouter provider")

	return &GenkitProvider{
		genkit: g,
		config: llmConfig,
		models: modelsConfig,
	}, nil
}

func (p *GenkitProvider) buildMessagesWithHistory(history []Message, systemPrompt string) []Message {
	if systemPrompt == "" {
		systemPrompt = p.config.DefaultSystemPrompt
	}
	return append([]Message{{Role: "system", Content: systemPrompt}}, history...)
}

// StreamChat starts one streaming generation through Genkit
func (p *GenkitProvider) StreamChat(ctx context.Context, modelID string, history []Message, systemPrompt string) (<-chan StreamEvent, error) {
	if modelID == "" {
		modelID = p.GetDefaultModel()
	}

	// Ensure model has openrouter/ prefix
	model := modelID
	if !strings.HasPrefix(model, "openrouter/") {
		model = "openrouter/" + model
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"message_count": len(history),
	}).Info("Calling Genkit (streaming)")

	// Convert messages to Genkit format
	var genkitMessages []*ai.Message
	for _, msg := range p.buildMessagesWithHistory(history, systemPrompt) {
		genkitMessages = append(genkitMessages, &ai.Message{
			Role:    ai.Role(msg.Role),
			Content: []*ai.Part{ai.NewTextPart(msg.Content)},
		})
	}

	genConfig := &openai.ChatCompletionNewParams{}

	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		send := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		resp, err := genkit.Generate(ctx, p.genkit,
			ai.WithMessages(genkitMessages...),
			ai.WithModelName(model),
			ai.WithConfig(genConfig),
			ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				for _, part := range chunk.Content {
					if part.IsText() && part.Text != "" {
						if !send(StreamEvent{TextDelta: part.Text}) {
							return ctx.Err()
						}
					}
				}
				return nil
			}),
		)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.WithError(err).Error("Genkit stream error")
			send(StreamEvent{Err: fmt.Errorf("genkit generation failed: %w", err)})
			return
		}

		var usage *ResponseUsage
		if resp.Usage != nil {
			usage = &ResponseUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			}
		}

		send(StreamEvent{Done: true, Usage: usage})
	}()

	return events, nil
}

// GetDefaultModel returns the default model for the Genkit provider
func (p *GenkitProvider) GetDefaultModel() string {
	return p.models.GetDefaultModel()
}
