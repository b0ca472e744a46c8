package postgres

import (
	"compare-app/internal/logger"
	"compare-app/internal/repository/db"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// CreateUser creates a new user with hashed password
func (p *PostgresDB) CreateUser(username, email, password, plan string) (*db.User, error) {
	conn := p.conn

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	if plan == "" {
		plan = "free"
	}

	userID := uuid.New().String()
	var createdAt time.Time

	query := `
	INSERT INTO users (id, username, email, password_hash, plan)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`

	err = conn.QueryRow(query, userID, username, email, string(hashedPassword), plan).Scan(&userID, &createdAt)
	if err != nil {
		if err.Error() == "pq: duplicate key value violates unique constraint \"users_username_key\"" {
			return nil, fmt.Errorf("username already exists")
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"username": username, "user_id": userID, "plan": plan}).Info("Created new user")

	return &db.User{
		ID:        userID,
		Username:  username,
		Email:     email,
		Plan:      plan,
		CreatedAt: createdAt,
	}, nil
}

// GetUserByUsername retrieves a user by username
func (p *PostgresDB) GetUserByUsername(username string) (*db.User, error) {
	return p.getUser(`SELECT id, username, email, password_hash, plan, compare_usage, created_at FROM users WHERE username = $1`, username)
}

// GetUserByID retrieves a user by id
func (p *PostgresDB) GetUserByID(id string) (*db.User, error) {
	return p.getUser(`SELECT id, username, email, password_hash, plan, compare_usage, created_at FROM users WHERE id = $1`, id)
}

func (p *PostgresDB) getUser(query, arg string) (*db.User, error) {
	var user db.User
	err := p.conn.QueryRow(query, arg).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Plan, &user.CompareUsage, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return &user, nil
}

// IncrementCompareUsage adds n consumed model invocations to the user's counter
func (p *PostgresDB) IncrementCompareUsage(userID string, n int) error {
	query := `UPDATE users SET compare_usage = compare_usage + $2 WHERE id = $1`
	if _, err := p.conn.Exec(query, userID, n); err != nil {
		return fmt.Errorf("error incrementing compare usage: %w", err)
	}
	return nil
}

// SeedDemoUser creates the demo user if it doesn't exist
func SeedDemoUser(database db.Database) error {
	// Check if demo user already exists
	_, err := database.GetUserByUsername("demo")
	if err == nil {
		logger.Log.Info("Demo user already exists, skipping seed")
		return nil
	}

	// Create demo user
	_, err = database.CreateUser("demo", "demo@example.com", "demo123", "free")
	if err != nil && err.Error() != "username already exists" {
		return fmt.Errorf("error seeding demo user: %w", err)
	}

	logger.Log.Info("Demo user seeded successfully")
	return nil
}
