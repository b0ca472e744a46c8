package compareclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStartCompare_DecodesEventStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/compare/stream" {
			t.Errorf("path = %q, want /api/compare/stream", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if len(req.ModelIDs) != 2 {
			t.Errorf("modelIds = %v, want 2 entries", req.ModelIDs)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"run_start\",\"runId\":\"run-1\",\"chatId\":\"chat-1\",\"models\":[\"a/1\",\"b/2\"]}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"delta\",\"runId\":\"run-1\",\"modelId\":\"a/1\",\"textDelta\":\"Hello\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"run_end\",\"runId\":\"run-1\"}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123", nil)
	stream, err := client.StartCompare(context.Background(), StartRequest{
		ChatID:   "chat-1",
		Prompt:   "hi",
		ModelIDs: []string{"a/1", "b/2"},
	})
	if err != nil {
		t.Fatalf("StartCompare() error = %v", err)
	}
	defer stream.Close()

	var events []*Event
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("Got %d events, want 3", len(events))
	}
	if events[0].Type != EventRunStart || events[0].RunID != "run-1" {
		t.Errorf("events[0] = %+v, want run_start for run-1", events[0])
	}
	if events[1].TextDelta != "Hello" {
		t.Errorf("events[1].TextDelta = %q, want Hello", events[1].TextDelta)
	}
	if events[2].Type != EventRunEnd {
		t.Errorf("events[2].Type = %q, want run_end", events[2].Type)
	}
}

func TestStartCompare_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code":429,"errorCode":"quota_exceeded","message":"compare quota exceeded"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123", nil)
	_, err := client.StartCompare(context.Background(), StartRequest{ChatID: "chat-1", Prompt: "hi", ModelIDs: []string{"a/1"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", apiErr.Status)
	}
	if apiErr.Code != "quota_exceeded" {
		t.Errorf("Code = %q, want quota_exceeded", apiErr.Code)
	}
}

func TestCancel_SendsModelID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		if body["runId"] != "run-1" || body["modelId"] != "a/1" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(CancelResponse{Success: true, CanceledStreams: 1})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123", nil)
	resp, err := client.Cancel(context.Background(), "run-1", "a/1")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !resp.Success || resp.CanceledStreams != 1 {
		t.Errorf("response = %+v, want success with 1 canceled", resp)
	}
}

func TestFetchRun_ReturnsDurableState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/compare/runs/run-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(RunDetail{
			Run: Run{ID: "run-1", Status: "completed"},
			Results: []Result{
				{ModelID: "a/1", Status: "completed", Content: "full answer"},
				{ModelID: "b/2", Status: "canceled", Content: "partial"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123", nil)
	detail, err := client.FetchRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("FetchRun() error = %v", err)
	}
	if detail.Run.Status != "completed" || len(detail.Results) != 2 {
		t.Errorf("detail = %+v", detail)
	}
}

func TestTracker_AccumulatesPerModel(t *testing.T) {
	tracker := NewTracker()

	apply := func(ev Event) { tracker.Apply(&ev) }

	apply(Event{Type: EventRunStart, RunID: "run-1", ChatID: "chat-1", Models: []string{"a/1", "b/2"}})
	apply(Event{Type: EventModelStart, ModelID: "a/1"})
	apply(Event{Type: EventModelStart, ModelID: "b/2"})
	apply(Event{Type: EventDelta, ModelID: "a/1", TextDelta: "Hello"})
	apply(Event{Type: EventReasoningDelta, ModelID: "b/2", ReasoningDelta: "hmm"})
	apply(Event{Type: EventDelta, ModelID: "a/1", TextDelta: ", world"})
	apply(Event{Type: EventModelEnd, ModelID: "a/1", Usage: &Usage{TotalTokens: 12}})
	apply(Event{Type: EventModelError, ModelID: "b/2", Error: "rate limited"})
	apply(Event{Type: EventRunEnd, RunID: "run-1"})

	if !tracker.Done {
		t.Error("Done = false, want true")
	}

	views := tracker.Models()
	if len(views) != 2 {
		t.Fatalf("Models() = %d entries, want 2", len(views))
	}
	if views[0].ModelID != "a/1" || views[1].ModelID != "b/2" {
		t.Errorf("model order = %s, %s", views[0].ModelID, views[1].ModelID)
	}

	if views[0].Content != "Hello, world" {
		t.Errorf("a/1 content = %q, want %q", views[0].Content, "Hello, world")
	}
	if views[0].Status != "completed" || views[0].Usage == nil || views[0].Usage.TotalTokens != 12 {
		t.Errorf("a/1 view = %+v", views[0])
	}

	if views[1].Status != "failed" || views[1].Error != "rate limited" {
		t.Errorf("b/2 view = %+v", views[1])
	}
	if views[1].Reasoning != "hmm" {
		t.Errorf("b/2 reasoning = %q, want hmm", views[1].Reasoning)
	}
}

func TestTracker_ApplyDetailSupersedesDeltas(t *testing.T) {
	tracker := NewTracker()
	tracker.Apply(&Event{Type: EventRunStart, RunID: "run-1", Models: []string{"a/1"}})
	tracker.Apply(&Event{Type: EventDelta, ModelID: "a/1", TextDelta: "partial onl"})

	// Reconnect: durable read replaces the truncated local state
	total := 20
	tracker.ApplyDetail(&RunDetail{
		Run: Run{ID: "run-1", Status: "completed"},
		Results: []Result{
			{ModelID: "a/1", Status: "completed", Content: "partial only at first, now complete", TotalTokens: &total},
		},
	})

	if !tracker.Done {
		t.Error("Done = false, want true")
	}
	view := tracker.Models()[0]
	if view.Content != "partial only at first, now complete" {
		t.Errorf("content = %q, want durable content", view.Content)
	}
	if view.Usage == nil || view.Usage.TotalTokens != 20 {
		t.Errorf("usage = %+v, want total 20", view.Usage)
	}
}
