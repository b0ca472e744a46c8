package llm

import "context"

// Message is one turn of conversation context sent to a model
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseUsage carries provider-reported token counts
type ResponseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamEvent is one event of a model invocation stream. Zero or more delta
// events are followed by exactly one terminal event: Done with optional Usage
// on success, or Err on failure. After the terminal event the channel closes.
type StreamEvent struct {
	TextDelta      string
	ReasoningDelta string
	Usage          *ResponseUsage
	Err            error
	Done           bool
}

// StreamProvider is the uniform interface over streaming model backends.
// Compare mode is plain text generation: no tool calling, no retries.
// Cancellation is cooperative through ctx; events already in flight when the
// context fires are still delivered, then the provider stops emitting.
type StreamProvider interface {
	// StreamChat starts a single model invocation and returns its event stream.
	// Request construction errors (missing key, bad status) are returned
	// directly; provider failures mid-stream arrive as a terminal Err event.
	StreamChat(ctx context.Context, modelID string, history []Message, systemPrompt string) (<-chan StreamEvent, error)

	// GetDefaultModel returns the default model for this provider
	GetDefaultModel() string
}
