package llm

import (
	"compare-app/internal/config"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testProvider(t *testing.T, handler http.HandlerFunc) *OpenRouterProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewOpenRouterProvider(
		&config.LLMConfig{OpenRouterAPIKey: "test-key", DefaultSystemPrompt: "helper"},
		config.NewModelsConfigFromModels([]config.Model{
			{ID: "alpha/one", Name: "Alpha One", Provider: "alpha", Tier: "free"},
		}),
	)
	provider.baseURL = server.URL
	return provider
}

func collectEvents(t *testing.T, stream <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("Timed out collecting stream events")
		}
	}
}

func TestStreamChat_DecodesDeltasAndUsage(t *testing.T) {
	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("Expected stream: true in request")
		}
		if req.Model != "alpha/one" {
			t.Errorf("Request model = %q, want alpha/one", req.Model)
		}
		if len(req.Messages) == 0 || req.Messages[0].Role != "system" {
			t.Error("Expected system message prepended to history")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"reasoning\":\"hmm\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":7,\"total_tokens\":12}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := provider.StreamChat(context.Background(), "alpha/one", []Message{{Role: "user", Content: "hi"}}, "")
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	events := collectEvents(t, stream)
	if len(events) != 4 {
		t.Fatalf("Got %d events, want 4: %+v", len(events), events)
	}

	if events[0].ReasoningDelta != "hmm" {
		t.Errorf("events[0].ReasoningDelta = %q, want %q", events[0].ReasoningDelta, "hmm")
	}
	if events[1].TextDelta != "Hello" || events[2].TextDelta != " world" {
		t.Errorf("text deltas = %q, %q", events[1].TextDelta, events[2].TextDelta)
	}

	last := events[3]
	if !last.Done {
		t.Error("Last event is not terminal")
	}
	if last.Usage == nil || last.Usage.TotalTokens != 12 {
		t.Errorf("Usage = %+v, want total 12", last.Usage)
	}
}

func TestStreamChat_ProviderErrorBecomesEvent(t *testing.T) {
	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"model overloaded\"}}\n\n")
	})

	stream, err := provider.StreamChat(context.Background(), "alpha/one", nil, "")
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	events := collectEvents(t, stream)
	last := events[len(events)-1]
	if last.Err == nil {
		t.Fatal("Expected terminal error event")
	}
	if last.Done {
		t.Error("Error event must not also be Done")
	}
}

func TestStreamChat_NonOKStatusFailsFast(t *testing.T) {
	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	})

	_, err := provider.StreamChat(context.Background(), "alpha/one", nil, "")
	if err == nil {
		t.Fatal("StreamChat() error = nil, want error for 401 response")
	}
}

func TestStreamChat_MissingAPIKey(t *testing.T) {
	provider := NewOpenRouterProvider(
		&config.LLMConfig{},
		config.NewModelsConfigFromModels(nil),
	)

	_, err := provider.StreamChat(context.Background(), "alpha/one", nil, "")
	if err == nil {
		t.Fatal("StreamChat() error = nil, want error for missing key")
	}
}

func TestStreamChat_ContextCancelClosesStream(t *testing.T) {
	blockForever := make(chan struct{})
	t.Cleanup(func() { close(blockForever) })

	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"start\"}}]}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-blockForever:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := provider.StreamChat(ctx, "alpha/one", nil, "")
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	// Read the first delta, then abort the invocation
	select {
	case ev := <-stream:
		if ev.TextDelta != "start" {
			t.Errorf("TextDelta = %q, want %q", ev.TextDelta, "start")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for first delta")
	}
	cancel()

	// Channel must close without a trailing error or Done event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return
			}
			if ev.Err != nil || ev.Done {
				t.Errorf("Got terminal event after cancel: %+v", ev)
			}
		case <-timeout:
			t.Fatal("Stream did not close after cancel")
		}
	}
}
