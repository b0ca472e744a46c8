package testutil

import (
	"compare-app/internal/app"
	"compare-app/internal/config"
	"compare-app/internal/repository/db"
	"compare-app/internal/service/llm"
	"context"
	"errors"
	"time"
)

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	// User mocks
	GetUserByUsernameFunc     func(username string) (*db.User, error)
	GetUserByIDFunc           func(id string) (*db.User, error)
	CreateUserFunc            func(username, email, passwordHash, plan string) (*db.User, error)
	IncrementCompareUsageFunc func(userID string, n int) error

	// Chat mocks
	GetChatFunc        func(id string) (*db.Chat, error)
	CreateChatFunc     func(userID, title string) (*db.Chat, error)
	GetChatsByUserFunc func(userID string) ([]db.Chat, error)
	DeleteChatFunc     func(id string) error

	// Message mocks
	AddMessageFunc        func(chatID, role, content, modelID string) (*db.Message, error)
	GetRecentMessagesFunc func(chatID string, limit int) ([]db.Message, error)

	// Compare run mocks
	CreateCompareRunFunc func(run *db.CompareRun) error
	GetCompareRunFunc    func(id string) (*db.CompareRun, error)
	UpdateRunStatusFunc  func(runID, status string) error
	ListCompareRunsFunc  func(chatID string, limit int, cursor string) (*db.RunPage, error)

	// Compare result mocks
	StartResultFunc    func(runID, modelID string, startedAt time.Time) error
	CompleteResultFunc func(runID, modelID, content, reasoning string, usage *db.ResultUsage, startedAt, completedAt time.Time) error
	FailResultFunc     func(runID, modelID, errorMessage string) error
	CancelResultFunc   func(runID, modelID string) error
	GetRunResultsFunc  func(runID string) ([]db.CompareResult, error)
}

// User methods
func (m *MockDatabase) GetUserByUsername(username string) (*db.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(username)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetUserByID(id string) (*db.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) CreateUser(username, email, passwordHash, plan string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(username, email, passwordHash, plan)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) IncrementCompareUsage(userID string, n int) error {
	if m.IncrementCompareUsageFunc != nil {
		return m.IncrementCompareUsageFunc(userID, n)
	}
	return errors.New("not implemented")
}

// Chat methods
func (m *MockDatabase) GetChat(id string) (*db.Chat, error) {
	if m.GetChatFunc != nil {
		return m.GetChatFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) CreateChat(userID, title string) (*db.Chat, error) {
	if m.CreateChatFunc != nil {
		return m.CreateChatFunc(userID, title)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetChatsByUser(userID string) ([]db.Chat, error) {
	if m.GetChatsByUserFunc != nil {
		return m.GetChatsByUserFunc(userID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) DeleteChat(id string) error {
	if m.DeleteChatFunc != nil {
		return m.DeleteChatFunc(id)
	}
	return errors.New("not implemented")
}

// Message methods
func (m *MockDatabase) AddMessage(chatID, role, content, modelID string) (*db.Message, error) {
	if m.AddMessageFunc != nil {
		return m.AddMessageFunc(chatID, role, content, modelID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetRecentMessages(chatID string, limit int) ([]db.Message, error) {
	if m.GetRecentMessagesFunc != nil {
		return m.GetRecentMessagesFunc(chatID, limit)
	}
	return nil, errors.New("not implemented")
}

// Compare run methods
func (m *MockDatabase) CreateCompareRun(run *db.CompareRun) error {
	if m.CreateCompareRunFunc != nil {
		return m.CreateCompareRunFunc(run)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) GetCompareRun(id string) (*db.CompareRun, error) {
	if m.GetCompareRunFunc != nil {
		return m.GetCompareRunFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) UpdateRunStatus(runID, status string) error {
	if m.UpdateRunStatusFunc != nil {
		return m.UpdateRunStatusFunc(runID, status)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) ListCompareRuns(chatID string, limit int, cursor string) (*db.RunPage, error) {
	if m.ListCompareRunsFunc != nil {
		return m.ListCompareRunsFunc(chatID, limit, cursor)
	}
	return nil, errors.New("not implemented")
}

// Compare result methods
func (m *MockDatabase) StartResult(runID, modelID string, startedAt time.Time) error {
	if m.StartResultFunc != nil {
		return m.StartResultFunc(runID, modelID, startedAt)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) CompleteResult(runID, modelID, content, reasoning string, usage *db.ResultUsage, startedAt, completedAt time.Time) error {
	if m.CompleteResultFunc != nil {
		return m.CompleteResultFunc(runID, modelID, content, reasoning, usage, startedAt, completedAt)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) FailResult(runID, modelID, errorMessage string) error {
	if m.FailResultFunc != nil {
		return m.FailResultFunc(runID, modelID, errorMessage)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) CancelResult(runID, modelID string) error {
	if m.CancelResultFunc != nil {
		return m.CancelResultFunc(runID, modelID)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) GetRunResults(runID string) ([]db.CompareResult, error) {
	if m.GetRunResultsFunc != nil {
		return m.GetRunResultsFunc(runID)
	}
	return nil, errors.New("not implemented")
}

// MockStreamProvider is a mock implementation of llm.StreamProvider for testing
type MockStreamProvider struct {
	StreamChatFunc      func(ctx context.Context, modelID string, history []llm.Message, systemPrompt string) (<-chan llm.StreamEvent, error)
	GetDefaultModelFunc func() string
}

func (m *MockStreamProvider) StreamChat(ctx context.Context, modelID string, history []llm.Message, systemPrompt string) (<-chan llm.StreamEvent, error) {
	if m.StreamChatFunc != nil {
		return m.StreamChatFunc(ctx, modelID, history, systemPrompt)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStreamProvider) GetDefaultModel() string {
	if m.GetDefaultModelFunc != nil {
		return m.GetDefaultModelFunc()
	}
	return "default-model"
}

// ScriptedStream returns a StreamChatFunc that replays the given events and
// closes the channel, honoring context cancellation between events.
func ScriptedStream(events ...llm.StreamEvent) func(ctx context.Context, modelID string, history []llm.Message, systemPrompt string) (<-chan llm.StreamEvent, error) {
	return func(ctx context.Context, modelID string, history []llm.Message, systemPrompt string) (<-chan llm.StreamEvent, error) {
		ch := make(chan llm.StreamEvent)
		go func() {
			defer close(ch)
			for _, ev := range events {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch, nil
	}
}

// NewMockConfig creates a mock app.Config for testing
func NewMockConfig(database db.Database) *app.Config {
	modelsConfig := config.NewModelsConfigFromModels([]config.Model{
		{ID: "alpha/one", Name: "Alpha One", Provider: "alpha", Tier: "free"},
		{ID: "beta/two", Name: "Beta Two", Provider: "beta", Tier: "free"},
		{ID: "gamma/three", Name: "Gamma Three", Provider: "gamma", Tier: "free"},
		{ID: "delta/pro", Name: "Delta Pro", Provider: "delta", Tier: "paid"},
	})

	return &app.Config{
		DB: database,
		AppConfig: &config.AppConfig{
			LLM: config.LLMConfig{
				OpenRouterAPIKey:    "test-api-key",
				DefaultSystemPrompt: "You are a helpful assistant.",
			},
			Auth: config.AuthConfig{
				JWTSecret:       []byte("test-secret-key-that-is-long-enough"),
				TokenExpiration: time.Hour,
			},
			Compare: config.DefaultCompareConfig(),
			Models:  modelsConfig,
		},
	}
}
