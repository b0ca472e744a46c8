package db

import "time"

// ResultUsage carries provider-reported token counts for a completed result
type ResultUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// RunPage is one page of a chat's compare run listing
type RunPage struct {
	Items      []CompareRun
	NextCursor string
	HasMore    bool
}

// Database defines the interface for all database operations
// This allows for easier testing through mocking and decouples the handlers and
// services from the specific database implementation
type Database interface {
	// Users
	GetUserByUsername(username string) (*User, error)
	GetUserByID(id string) (*User, error)
	CreateUser(username, email, passwordHash, plan string) (*User, error)
	IncrementCompareUsage(userID string, n int) error

	// Chats
	GetChat(id string) (*Chat, error)
	CreateChat(userID, title string) (*Chat, error)
	GetChatsByUser(userID string) ([]Chat, error)
	DeleteChat(id string) error

	// Messages
	AddMessage(chatID, role, content, modelID string) (*Message, error)
	GetRecentMessages(chatID string, limit int) ([]Message, error)

	// Compare runs. CreateCompareRun persists the run and its pending results
	// in one transaction so a rejected run never leaves partial rows behind.
	CreateCompareRun(run *CompareRun) error
	GetCompareRun(id string) (*CompareRun, error)
	UpdateRunStatus(runID, status string) error
	ListCompareRuns(chatID string, limit int, cursor string) (*RunPage, error)

	// Compare results. Each mutation is a single-row write keyed by
	// (run id, model id); terminal writes carry the full accumulated content.
	StartResult(runID, modelID string, startedAt time.Time) error
	CompleteResult(runID, modelID, content, reasoning string, usage *ResultUsage, startedAt, completedAt time.Time) error
	FailResult(runID, modelID, errorMessage string) error
	CancelResult(runID, modelID string) error
	GetRunResults(runID string) ([]CompareResult, error)
}
