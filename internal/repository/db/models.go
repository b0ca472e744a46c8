package db

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Run statuses. Once a run leaves StatusRunning it never goes back.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCanceled  = "canceled"
	RunStatusFailed    = "failed"
)

// Result statuses, transitioning pending -> running -> terminal.
const (
	ResultStatusPending   = "pending"
	ResultStatusRunning   = "running"
	ResultStatusCompleted = "completed"
	ResultStatusCanceled  = "canceled"
	ResultStatusFailed    = "failed"
)

// User represents a user in the database
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Plan         string // "free" or "pro"
	CompareUsage int    // model invocations consumed
	CreatedAt    time.Time
}

// VerifyPassword checks a plaintext password against the stored hash
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Chat represents a chat thread compare runs belong to
type Chat struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents one turn of a chat, used as model context
type Message struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	ModelID   string
	CreatedAt time.Time
}

// CompareRun represents one prompt fanned out to multiple models
type CompareRun struct {
	ID        string
	ChatID    string
	UserID    string
	Prompt    string
	ModelIDs  []string
	Status    string
	CreatedAt time.Time
}

// CompareResult is one model's portion of a compare run
type CompareResult struct {
	RunID            string
	ModelID          string
	Status           string
	Content          string
	Reasoning        string
	ErrorMessage     string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	StartedAt        *time.Time
	CompletedAt      *time.Time
	InferenceTimeMs  *int64 // CompletedAt - StartedAt, server clock
}
