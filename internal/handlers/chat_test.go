package handlers

import (
	"compare-app/internal/repository/db"
	"compare-app/internal/testutil"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestGetModelsHandler_FiltersByPlan(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	mockDB.GetUserByUsernameFunc = func(username string) (*db.User, error) {
		return testUser("free", 0), nil
	}
	handlers := NewChatHandlers(testutil.NewMockConfig(mockDB))

	recorder := httptest.NewRecorder()
	handlers.GetModelsHandler(recorder, authedRequest("GET", "/api/models", ""))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}

	var resp ModelsResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	// The paid-tier model must not appear for a free user
	for _, model := range resp.Models {
		if model.Tier != "free" {
			t.Errorf("free plan received %s model %s", model.Tier, model.ID)
		}
	}
	if len(resp.Models) != 3 {
		t.Errorf("models = %d, want 3", len(resp.Models))
	}
}

func TestGetModelsHandler_ProPlanSeesEverything(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	mockDB.GetUserByUsernameFunc = func(username string) (*db.User, error) {
		return testUser("pro", 0), nil
	}
	handlers := NewChatHandlers(testutil.NewMockConfig(mockDB))

	recorder := httptest.NewRecorder()
	handlers.GetModelsHandler(recorder, authedRequest("GET", "/api/models", ""))

	var resp ModelsResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Models) != 4 {
		t.Errorf("models = %d, want 4", len(resp.Models))
	}
}

func TestCreateChatHandler_DefaultsTitle(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	mockDB.GetUserByUsernameFunc = func(username string) (*db.User, error) {
		return testUser("free", 0), nil
	}
	mockDB.CreateChatFunc = func(userID, title string) (*db.Chat, error) {
		if title != "New chat" {
			t.Errorf("title = %q, want default", title)
		}
		return &db.Chat{ID: "chat-1", UserID: userID, Title: title}, nil
	}
	handlers := NewChatHandlers(testutil.NewMockConfig(mockDB))

	recorder := httptest.NewRecorder()
	handlers.CreateChatHandler(recorder, authedRequest("POST", "/api/chats", `{}`))

	if recorder.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusCreated)
	}
}

func TestDeleteChatHandler_ForeignChat(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	mockDB.GetUserByUsernameFunc = func(username string) (*db.User, error) {
		return testUser("free", 0), nil
	}
	mockDB.GetChatFunc = func(id string) (*db.Chat, error) {
		return &db.Chat{ID: id, UserID: "someone-else"}, nil
	}
	deleted := false
	mockDB.DeleteChatFunc = func(id string) error {
		deleted = true
		return nil
	}
	handlers := NewChatHandlers(testutil.NewMockConfig(mockDB))

	req := authedRequest("DELETE", "/api/chats/"+testChatID, "")
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", testChatID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	recorder := httptest.NewRecorder()
	handlers.DeleteChatHandler(recorder, req)

	if recorder.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusForbidden)
	}
	if deleted {
		t.Error("Chat was deleted despite ownership failure")
	}
}
