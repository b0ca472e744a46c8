package handlers

import (
	"compare-app/internal/app"
	"compare-app/internal/auth"
	"compare-app/internal/config"
	"compare-app/internal/logger"
	"compare-app/internal/repository/db"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// CreateChatRequest is the body of POST /api/chats
type CreateChatRequest struct {
	Title string `json:"title"`
}

// ChatInfo is the wire shape of a chat
type ChatInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// MessageInfo is the wire shape of one chat turn
type MessageInfo struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	ModelID   string `json:"modelId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// ModelsResponse lists the models available to the requesting user's plan
type ModelsResponse struct {
	Models []config.Model `json:"models"`
}

// ChatHandlers exposes chat management and model catalog endpoints
type ChatHandlers struct {
	config *app.Config
}

// NewChatHandlers creates the chat endpoint handlers
func NewChatHandlers(cfg *app.Config) *ChatHandlers {
	return &ChatHandlers{config: cfg}
}

func (h *ChatHandlers) getUserFromContext(r *http.Request) (*db.User, error) {
	username, ok := r.Context().Value(auth.UserContextKey).(string)
	if !ok {
		return nil, fmt.Errorf("no authenticated user in context")
	}
	return h.config.DB.GetUserByUsername(username)
}

// CreateChatHandler creates a new chat for the authenticated user
func (h *ChatHandlers) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	title := req.Title
	if title == "" {
		title = "New chat"
	}

	chat, err := h.config.DB.CreateChat(user.ID, title)
	if err != nil {
		logger.Log.WithError(err).Error("Error creating chat")
		sendError(w, http.StatusInternalServerError, "Error creating chat", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toChatInfo(chat))
}

// ListChatsHandler returns the authenticated user's chats
func (h *ChatHandlers) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	chats, err := h.config.DB.GetChatsByUser(user.ID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Error listing chats", err)
		return
	}

	infos := make([]ChatInfo, 0, len(chats))
	for i := range chats {
		infos = append(infos, toChatInfo(&chats[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]ChatInfo{"chats": infos})
}

// GetChatMessagesHandler returns the recent turns of a chat
func (h *ChatHandlers) GetChatMessagesHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	user, err := h.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	chat, err := h.config.DB.GetChat(chatID)
	if err != nil {
		sendError(w, http.StatusNotFound, "Chat not found", err)
		return
	}
	if chat.UserID != user.ID {
		sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return
	}

	messages, err := h.config.DB.GetRecentMessages(chatID, h.config.AppConfig.Compare.HistoryLimit)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Error loading messages", err)
		return
	}

	infos := make([]MessageInfo, 0, len(messages))
	for _, msg := range messages {
		infos = append(infos, MessageInfo{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			ModelID:   msg.ModelID,
			CreatedAt: msg.CreatedAt.Format(time.RFC3339Nano),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]MessageInfo{"messages": infos})
}

// DeleteChatHandler deletes a chat and everything under it
func (h *ChatHandlers) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	user, err := h.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	chat, err := h.config.DB.GetChat(chatID)
	if err != nil {
		sendError(w, http.StatusNotFound, "Chat not found", err)
		return
	}
	if chat.UserID != user.ID {
		sendError(w, http.StatusForbidden, "Unauthorized", nil)
		return
	}

	if err := h.config.DB.DeleteChat(chatID); err != nil {
		sendError(w, http.StatusInternalServerError, "Error deleting chat", err)
		return
	}

	logger.Log.WithField("chat_id", chatID).Info("Chat deleted")
	w.WriteHeader(http.StatusNoContent)
}

// GetModelsHandler returns the model catalog filtered by the user's plan
func (h *ChatHandlers) GetModelsHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromContext(r)
	if err != nil {
		sendError(w, http.StatusNotFound, "User not found", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ModelsResponse{
		Models: h.config.AppConfig.Models.GetModelsForPlan(user.Plan),
	})
}

// HealthHandler reports service liveness
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func toChatInfo(chat *db.Chat) ChatInfo {
	return ChatInfo{
		ID:        chat.ID,
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: chat.UpdatedAt.Format(time.RFC3339Nano),
	}
}
