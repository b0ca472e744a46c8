package llm

import (
	"bufio"
	"bytes"
	"compare-app/internal/config"
	"compare-app/internal/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterProvider implements StreamProvider using direct OpenRouter API calls
type OpenRouterProvider struct {
	config  *config.LLMConfig
	models  *config.ModelsConfig
	baseURL string // overridable in tests
}

// NewOpenRouterProvider creates a new OpenRouter provider with config
func NewOpenRouterProvider(llmConfig *config.LLMConfig, modelsConfig *config.ModelsConfig) *OpenRouterProvider {
	return &OpenRouterProvider{
		config:  llmConfig,
		models:  modelsConfig,
		baseURL: openRouterURL,
	}
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatRequest struct {
	Model            string         `json:"model"`
	Messages         []Message      `json:"messages"`
	Stream           bool           `json:"stream"`
	IncludeReasoning bool           `json:"include_reasoning,omitempty"`
	StreamOptions    *streamOptions `json:"stream_options,omitempty"`
}

type delta struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta delta `json:"delta"`
	} `json:"choices"`
	Usage *ResponseUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenRouterProvider) buildMessagesWithHistory(history []Message, systemPrompt string) []Message {
	if systemPrompt == "" {
		systemPrompt = p.config.DefaultSystemPrompt
	}
	// Prepend system message to the conversation history
	return append([]Message{{Role: "system", Content: systemPrompt}}, history...)
}

// StreamChat starts one streaming completion and decodes the upstream SSE
// frames into StreamEvents. The returned channel closes after the terminal
// event, or silently once ctx is canceled.
func (p *OpenRouterProvider) StreamChat(ctx context.Context, modelID string, history []Message, systemPrompt string) (<-chan StreamEvent, error) {
	apiKey := p.config.OpenRouterAPIKey
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not configured")
	}

	if modelID == "" {
		modelID = p.GetDefaultModel()
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         modelID,
		"message_count": len(history),
	}).Info("Calling OpenRouter API (streaming)")

	reqBody := chatRequest{
		Model:            modelID,
		Messages:         p.buildMessagesWithHistory(history, systemPrompt),
		Stream:           true,
		IncludeReasoning: true,
		StreamOptions:    &streamOptions{IncludeUsage: true},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("HTTP-Referer", "http://localhost:3000")
	req.Header.Set("X-Title", "Compare App")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	events := make(chan StreamEvent)

	go func() {
		defer resp.Body.Close()
		defer close(events)

		// send delivers an event unless the invocation has been aborted
		send := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var usage *ResponseUsage

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()

			if line == "" || line == "data: [DONE]" || strings.HasPrefix(line, ":") {
				continue
			}

			// Parse SSE event format: "data: {json}"
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			jsonStr := strings.TrimPrefix(line, "data: ")

			var streamResp chatResponse
			if err := json.Unmarshal([]byte(jsonStr), &streamResp); err != nil {
				logger.Log.WithError(err).Warn("Error parsing stream chunk")
				continue
			}

			if streamResp.Error != nil {
				send(StreamEvent{Err: fmt.Errorf("provider error: %s", streamResp.Error.Message)})
				return
			}

			// Usage arrives at the end of the stream with empty choices
			if streamResp.Usage != nil {
				usage = streamResp.Usage
			}

			if len(streamResp.Choices) > 0 {
				d := streamResp.Choices[0].Delta
				if d.Reasoning != "" {
					if !send(StreamEvent{ReasoningDelta: d.Reasoning}) {
						return
					}
				}
				if d.Content != "" {
					if !send(StreamEvent{TextDelta: d.Content}) {
						return
					}
				}
			}
		}

		if err := scanner.Err(); err != nil {
			// A canceled context surfaces as a read error; the caller observed
			// the abort itself, so only real transport failures become events.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Log.WithError(err).Error("Scanner error during streaming")
			send(StreamEvent{Err: fmt.Errorf("stream read error: %w", err)})
			return
		}

		send(StreamEvent{Done: true, Usage: usage})
	}()

	return events, nil
}

// GetDefaultModel returns the default model for OpenRouter provider
func (p *OpenRouterProvider) GetDefaultModel() string {
	return p.models.GetDefaultModel()
}
