package postgres

import (
	"compare-app/internal/logger"
	"compare-app/internal/repository/db"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateChat creates a new chat for a user
func (p *PostgresDB) CreateChat(userID, title string) (*db.Chat, error) {
	conn := p.conn

	chatID := uuid.New().String()
	var createdAt, updatedAt time.Time

	query := `
	INSERT INTO chats (id, user_id, title)
	VALUES ($1, $2, $3)
	RETURNING id, created_at, updated_at
	`

	err := conn.QueryRow(query, chatID, userID, title).Scan(&chatID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating chat: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"chat_id": chatID, "user_id": userID}).Info("Created new chat")

	return &db.Chat{
		ID:        chatID,
		UserID:    userID,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// GetChat retrieves a specific chat
func (p *PostgresDB) GetChat(chatID string) (*db.Chat, error) {
	var chat db.Chat
	query := `SELECT id, user_id, title, created_at, updated_at FROM chats WHERE id = $1`

	err := p.conn.QueryRow(query, chatID).Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chat not found")
		}
		return nil, fmt.Errorf("error retrieving chat: %w", err)
	}

	return &chat, nil
}

// GetChatsByUser retrieves all chats for a user, most recently updated first
func (p *PostgresDB) GetChatsByUser(userID string) ([]db.Chat, error) {
	query := `
	SELECT id, user_id, title, created_at, updated_at
	FROM chats
	WHERE user_id = $1
	ORDER BY updated_at DESC
	`

	rows, err := p.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying chats: %w", err)
	}
	defer rows.Close()

	var chats []db.Chat
	for rows.Next() {
		var chat db.Chat
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning chat: %w", err)
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

// DeleteChat deletes a chat and its messages and runs (cascade in schema)
func (p *PostgresDB) DeleteChat(chatID string) error {
	if _, err := p.conn.Exec(`DELETE FROM chats WHERE id = $1`, chatID); err != nil {
		return fmt.Errorf("error deleting chat: %w", err)
	}
	return nil
}

// AddMessage adds a message to a chat
func (p *PostgresDB) AddMessage(chatID, role, content, modelID string) (*db.Message, error) {
	conn := p.conn

	msgID := uuid.New().String()
	var createdAt time.Time

	query := `
	INSERT INTO messages (id, chat_id, role, content, model_id)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`

	err := conn.QueryRow(query, msgID, chatID, role, content, modelID).Scan(&msgID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("error adding message: %w", err)
	}

	// Update chat updated_at timestamp
	if _, err := conn.Exec(`UPDATE chats SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, chatID); err != nil {
		logger.Log.WithError(err).Warn("Error updating chat timestamp")
	}

	return &db.Message{
		ID:        msgID,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		ModelID:   modelID,
		CreatedAt: createdAt,
	}, nil
}

// GetRecentMessages retrieves the most recent messages of a chat in
// chronological order, bounded to limit turns.
func (p *PostgresDB) GetRecentMessages(chatID string, limit int) ([]db.Message, error) {
	query := `
	SELECT id, chat_id, role, content, COALESCE(model_id, ''), created_at
	FROM (
		SELECT id, chat_id, role, content, model_id, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	) recent
	ORDER BY created_at ASC
	`

	rows, err := p.conn.Query(query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []db.Message
	for rows.Next() {
		var msg db.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.ModelID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
