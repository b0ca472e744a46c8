package handlers

import (
	"compare-app/internal/app"
	"compare-app/internal/auth"
	"compare-app/internal/logger"
	"compare-app/internal/repository/db"
	"compare-app/internal/service/compare"
	"compare-app/pkg/validation"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// StartCompareRequest is the body of POST /api/compare/stream
type StartCompareRequest struct {
	ChatID   string   `json:"chatId"`
	Prompt   string   `json:"prompt"`
	ModelIDs []string `json:"modelIds"`
	RunID    string   `json:"runId,omitempty"`
}

// CancelCompareRequest is the body of POST /api/compare/cancel
type CancelCompareRequest struct {
	RunID   string `json:"runId"`
	ModelID string `json:"modelId,omitempty"`
}

// CancelCompareResponse reports how many streams were actually interrupted
type CancelCompareResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	CanceledStreams int    `json:"canceledStreams"`
}

// RunInfo is the wire shape of a compare run
type RunInfo struct {
	ID        string   `json:"id"`
	ChatID    string   `json:"chatId"`
	Prompt    string   `json:"prompt"`
	ModelIDs  []string `json:"modelIds"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"createdAt"`
}

// ResultInfo is the wire shape of one model's result
type ResultInfo struct {
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

// RunDetailResponse is the durable-state read used by reconnecting clients
type RunDetailResponse struct {
	Run     RunInfo      `json:"run"`
	Results []ResultInfo `json:"results"`
}

// RunListResponse is one page of a chat's runs
type RunListResponse struct {
	Items      []RunInfo `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
	HasMore    bool      `json:"hasMore"`
}

// CompareHandlers exposes the compare streaming pipeline over HTTP
type CompareHandlers struct {
	config    *app.Config
	service   *compare.Service
	validator *validation.CompareRequestValidator
}

// NewCompareHandlers creates the compare endpoint handlers
func NewCompareHandlers(cfg *app.Config, service *compare.Service) *CompareHandlers {
	return &CompareHandlers{
		config:    cfg,
		service:   service,
		validator: validation.NewCompareRequestValidator(cfg.AppConfig.Compare.MaxModels),
	}
}

// getUserFromContext extracts and resolves the authenticated user
func (ch *CompareHandlers) getUserFromContext(r *http.Request) (*db.User, error) {
	username, ok := r.Context().Value(auth.UserContextKey).(string)
	if !ok {
		return nil, fmt.Errorf("no authenticated user in context")
	}
	return ch.config.DB.GetUserByUsername(username)
}

// StreamHandler starts a compare run and streams its events as SSE.
// Every rejection happens before the stream opens and is a JSON error.
func (ch *CompareHandlers) StreamHandler(w http.ResponseWriter, r *http.Request) {
	var req StartCompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendCodedError(w, http.StatusBadRequest, validation.CodeInvalidRequest, "Invalid request body")
		return
	}

	if err := ch.validator.ValidateStartRequest(req.ChatID, req.Prompt, req.ModelIDs, req.RunID); err != nil {
		sendValidationError(w, err)
		return
	}

	user, err := ch.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	// Model ids must exist in the catalog and be permitted for the plan
	for _, modelID := range req.ModelIDs {
		if !ch.config.AppConfig.Models.IsValidModel(modelID) {
			sendCodedError(w, http.StatusBadRequest, validation.CodeUnknownModel, fmt.Sprintf("unknown model id: %s", modelID))
			return
		}
		if !ch.config.AppConfig.Models.IsModelAllowedForPlan(modelID, user.Plan) {
			sendCodedError(w, http.StatusForbidden, validation.CodeModelNotAllowed, fmt.Sprintf("model %s is not available on the %s plan", modelID, user.Plan))
			return
		}
	}

	// Quota check: used + N must stay within the plan's allowance
	quota := ch.config.AppConfig.Compare.QuotaForPlan(user.Plan)
	if user.CompareUsage+len(req.ModelIDs) > quota {
		sendCodedError(w, http.StatusTooManyRequests, validation.CodeQuotaExceeded,
			fmt.Sprintf("compare quota exceeded: %d of %d used", user.CompareUsage, quota))
		return
	}

	chat, err := ch.config.DB.GetChat(req.ChatID)
	if err != nil {
		sendError(w, http.StatusNotFound, "Chat not found", err)
		return
	}
	if chat.UserID != user.ID {
		sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return
	}

	run, err := ch.service.CreateRun(compare.StartRequest{
		UserID:   user.ID,
		ChatID:   req.ChatID,
		Prompt:   req.Prompt,
		ModelIDs: req.ModelIDs,
		RunID:    req.RunID,
	})
	if err != nil {
		if errors.Is(err, compare.ErrRunExists) {
			sendCodedError(w, http.StatusConflict, validation.CodeRunExists, "a run with this id already exists")
			return
		}
		sendError(w, http.StatusInternalServerError, "Error creating compare run", err)
		return
	}

	// The platform ceiling applies from here: the stream never outlives it
	ctx, cancel := context.WithTimeout(r.Context(), ch.config.AppConfig.Compare.RequestTimeout)
	defer cancel()

	if err := ch.service.Stream(ctx, w, run); err != nil {
		// Stream setup failed before any frame was written
		logger.WithRun(run.ID).WithError(err).Error("Compare stream failed")
		sendError(w, http.StatusInternalServerError, "Streaming not supported", err)
	}
}

// CancelHandler aborts one model or a whole run
func (ch *CompareHandlers) CancelHandler(w http.ResponseWriter, r *http.Request) {
	var req CancelCompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendCodedError(w, http.StatusBadRequest, validation.CodeInvalidRequest, "Invalid request body")
		return
	}

	if err := ch.validator.ValidateCancelRequest(req.RunID); err != nil {
		sendValidationError(w, err)
		return
	}

	user, err := ch.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	// Ownership check happens here; the cancellation core trusts the caller
	run, err := ch.config.DB.GetCompareRun(req.RunID)
	if err != nil {
		sendError(w, http.StatusNotFound, "Compare run not found", err)
		return
	}
	if run.UserID != user.ID {
		sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return
	}

	canceled := ch.service.Cancel(req.RunID, req.ModelID)

	message := "No active streams to cancel"
	if canceled > 0 {
		message = fmt.Sprintf("Canceled %d stream(s)", canceled)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CancelCompareResponse{
		Success:         true,
		Message:         message,
		CanceledStreams: canceled,
	})
}

// GetRunHandler returns the durable state of a run and its results
func (ch *CompareHandlers) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	user, err := ch.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	run, results, err := ch.service.GetRun(runID)
	if err != nil {
		sendError(w, http.StatusNotFound, "Compare run not found", err)
		return
	}
	if run.UserID != user.ID {
		sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return
	}

	resp := RunDetailResponse{Run: toRunInfo(run)}
	for _, res := range results {
		resp.Results = append(resp.Results, toResultInfo(&res))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListRunsHandler returns a paginated run listing for a chat
func (ch *CompareHandlers) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		sendCodedError(w, http.StatusBadRequest, validation.CodeInvalidRequest, "chatId query parameter is required")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 100 {
			sendCodedError(w, http.StatusBadRequest, validation.CodeInvalidRequest, "limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	user, err := ch.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	chat, err := ch.config.DB.GetChat(chatID)
	if err != nil {
		sendError(w, http.StatusNotFound, "Chat not found", err)
		return
	}
	if chat.UserID != user.ID {
		sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return
	}

	page, err := ch.service.ListRuns(chatID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Error listing compare runs", err)
		return
	}

	resp := RunListResponse{
		Items:      make([]RunInfo, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i := range page.Items {
		resp.Items = append(resp.Items, toRunInfo(&page.Items[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func toRunInfo(run *db.CompareRun) RunInfo {
	return RunInfo{
		ID:        run.ID,
		ChatID:    run.ChatID,
		Prompt:    run.Prompt,
		ModelIDs:  run.ModelIDs,
		Status:    run.Status,
		CreatedAt: run.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toResultInfo(res *db.CompareResult) ResultInfo {
	info := ResultInfo{
		ModelID:          res.ModelID,
		Status:           res.Status,
		Content:          res.Content,
		Reasoning:        res.Reasoning,
		Error:            res.ErrorMessage,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		TotalTokens:      res.TotalTokens,
		InferenceTimeMs:  res.InferenceTimeMs,
	}
	if res.StartedAt != nil {
		info.ServerStartedAt = res.StartedAt.Format(time.RFC3339Nano)
	}
	if res.CompletedAt != nil {
		info.ServerCompletedAt = res.CompletedAt.Format(time.RFC3339Nano)
	}
	return info
}
