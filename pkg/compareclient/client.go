// Package compareclient consumes the compare streaming API: it starts runs,
// decodes the SSE event stream, tracks per-model state locally, and falls back
// to the durable run endpoint after a dropped connection.
package compareclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Event is one decoded frame of a compare stream
type Event struct {
	Type              string   `json:"type"`
	RunID             string   `json:"runId,omitempty"`
	ChatID            string   `json:"chatId,omitempty"`
	ModelID           string   `json:"modelId,omitempty"`
	Models            []string `json:"models,omitempty"`
	TextDelta         string   `json:"textDelta,omitempty"`
	ReasoningDelta    string   `json:"reasoningDelta,omitempty"`
	Usage             *Usage   `json:"usage,omitempty"`
	ServerStartedAt   string   `json:"serverStartedAt,omitempty"`
	ServerCompletedAt string   `json:"serverCompletedAt,omitempty"`
	InferenceTimeMs   *int64   `json:"inferenceTimeMs,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// Usage carries provider-reported token counts. Field names mirror the
// server's event payloads.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Event type constants mirrored from the server
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

// StartRequest is the body of a compare start call
type StartRequest struct {
	ChatID   string   `json:"chatId"`
	Prompt   string   `json:"prompt"`
	ModelIDs []string `json:"modelIds"`
	RunID    string   `json:"runId,omitempty"`
}

// CancelResponse reports how many streams a cancel call interrupted
type CancelResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	CanceledStreams int    `json:"canceledStreams"`
}

// Run is the durable view of a compare run
type Run struct {
	ID        string   `json:"id"`
	ChatID    string   `json:"chatId"`
	Prompt    string   `json:"prompt"`
	ModelIDs  []string `json:"modelIds"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"createdAt"`
}

// Result is the durable view of one model's output
type Result struct {
	ModelID           string `json:"modelId"`
	Status            string `json:"status"`
	Content           string `json:"content,omitempty"`
	Reasoning         string `json:"reasoning,omitempty"`
	Error             string `json:"error,omitempty"`
	PromptTokens      *int   `json:"promptTokens,omitempty"`
	CompletionTokens  *int   `json:"completionTokens,omitempty"`
	TotalTokens       *int   `json:"totalTokens,omitempty"`
	ServerStartedAt   string `json:"serverStartedAt,omitempty"`
	ServerCompletedAt string `json:"serverCompletedAt,omitempty"`
	InferenceTimeMs   *int64 `json:"inferenceTimeMs,omitempty"`
}

// RunDetail is a run together with its per-model results
type RunDetail struct {
	Run     Run      `json:"run"`
	Results []Result `json:"results"`
}

// RunList is one page of a chat's runs
type RunList struct {
	Items      []Run  `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

type apiError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a compare server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL authenticating with the
// given bearer token. A custom *http.Client can be injected for testing.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func decodeAPIError(resp *http.Response) error {
	defer resp.Body.Close()
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	return &APIError{Status: resp.StatusCode, Code: apiErr.ErrorCode, Message: apiErr.Message}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StartCompare starts a run and returns its live event stream. The stream must
// be closed by the caller; canceling ctx also tears it down.
func (c *Client) StartCompare(ctx context.Context, req StartRequest) (*Stream, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/compare/stream", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	return newStream(resp.Body), nil
}

// Cancel aborts a whole run, or one model of it when modelID is non-empty
func (c *Client) Cancel(ctx context.Context, runID, modelID string) (*CancelResponse, error) {
	body := map[string]string{"runId": runID}
	if modelID != "" {
		body["modelId"] = modelID
	}
	var out CancelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/compare/cancel", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchRun reads the durable state of a run. This is the reconnect path: after
// a dropped stream the accumulated content here replaces the lost deltas.
func (c *Client) FetchRun(ctx context.Context, runID string) (*RunDetail, error) {
	var out RunDetail
	if err := c.doJSON(ctx, http.MethodGet, "/api/compare/runs/"+url.PathEscape(runID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns pages through a chat's past runs
func (c *Client) ListRuns(ctx context.Context, chatID string, limit int, cursor string) (*RunList, error) {
	q := url.Values{}
	q.Set("chatId", chatID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var out RunList
	if err := c.doJSON(ctx, http.MethodGet, "/api/compare/runs?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stream decodes SSE frames from a live compare response
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{body: body, scanner: scanner}
}

// Next returns the next event. io.EOF signals a cleanly closed stream.
func (s *Stream) Next() (*Event, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return nil, fmt.Errorf("error decoding event: %w", err)
		}
		return &ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying connection
func (s *Stream) Close() error {
	return s.body.Close()
}
