package compare

import (
	"compare-app/internal/service/llm"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Event types emitted on the compare SSE stream
const (
	EventRunStart       = "run_start"
	EventModelStart     = "model_start"
	EventDelta          = "delta"
	EventReasoningDelta = "reasoning_delta"
	EventModelEnd       = "model_end"
	EventModelError     = "model_error"
	EventRunEnd         = "run_end"
	EventHeartbeat      = "heartbeat"
)

// Event is one frame of the compare stream. The closed set of event kinds
// shares a single struct; each constructor fills only the fields its kind
// carries and omitempty keeps the wire payloads minimal.
type Event struct {
	Type              string             `json:"type"`
	RunID             string             `json:"runId,omitempty"`
	ChatID            string             `json:"chatId,omitempty"`
	ModelID           string             `json:"modelId,omitempty"`
	Models            []string           `json:"models,omitempty"`
	TextDelta         string             `json:"textDelta,omitempty"`
	ReasoningDelta    string             `json:"reasoningDelta,omitempty"`
	Usage             *llm.ResponseUsage `json:"usage,omitempty"`
	ServerStartedAt   string             `json:"serverStartedAt,omitempty"`
	ServerCompletedAt string             `json:"serverCompletedAt,omitempty"`
	InferenceTimeMs   *int64             `json:"inferenceTimeMs,omitempty"`
	Error             string             `json:"error,omitempty"`
}

func newRunStartEvent(runID, chatID string, models []string) Event {
	return Event{Type: EventRunStart, RunID: runID, ChatID: chatID, Models: models}
}

func newModelStartEvent(runID, modelID string, startedAt time.Time) Event {
	return Event{Type: EventModelStart, RunID: runID, ModelID: modelID, ServerStartedAt: startedAt.Format(time.RFC3339Nano)}
}

func newDeltaEvent(runID, modelID, delta string) Event {
	return Event{Type: EventDelta, RunID: runID, ModelID: modelID, TextDelta: delta}
}

func newReasoningDeltaEvent(runID, modelID, delta string) Event {
	return Event{Type: EventReasoningDelta, RunID: runID, ModelID: modelID, ReasoningDelta: delta}
}

func newModelEndEvent(runID, modelID string, usage *llm.ResponseUsage, startedAt, completedAt time.Time) Event {
	inferenceMs := completedAt.Sub(startedAt).Milliseconds()
	return Event{
		Type:              EventModelEnd,
		RunID:             runID,
		ModelID:           modelID,
		Usage:             usage,
		ServerStartedAt:   startedAt.Format(time.RFC3339Nano),
		ServerCompletedAt: completedAt.Format(time.RFC3339Nano),
		InferenceTimeMs:   &inferenceMs,
	}
}

func newModelErrorEvent(runID, modelID, errMsg string) Event {
	return Event{Type: EventModelError, RunID: runID, ModelID: modelID, Error: errMsg}
}

func newRunEndEvent(runID string) Event {
	return Event{Type: EventRunEnd, RunID: runID}
}

func newHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat}
}

// EventWriter frames events onto one outbound SSE byte stream. It is driven by
// a single goroutine, so writes need no locking.
type EventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEventWriter prepares w for SSE and returns the writer. Fails when the
// underlying connection cannot stream.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &EventWriter{w: w, flusher: flusher}, nil
}

// WriteEvent writes one framed event and flushes it to the client
func (ew *EventWriter) WriteEvent(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(ew.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("error writing event: %w", err)
	}
	ew.flusher.Flush()
	return nil
}
