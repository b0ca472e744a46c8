package config

import (
	"compare-app/internal/logger"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Auth     AuthConfig
	Compare  CompareConfig
	Models   *ModelsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	OpenRouterAPIKey    string
	DefaultSystemPrompt string
	Provider            string // "openrouter" or "genkit"
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       []byte
	TokenExpiration time.Duration
}

// CompareConfig holds the limits and timings of the compare streaming pipeline
type CompareConfig struct {
	MaxModels         int           // max concurrent models per run
	HistoryLimit      int           // most recent chat turns sent as context
	HeartbeatInterval time.Duration // SSE keep-alive cadence
	RequestTimeout    time.Duration // hard wall-clock ceiling per stream request
	SweepInterval     time.Duration // registry leak-guard cadence
	SweepMaxAge       time.Duration // handles older than this are swept
	FreeQuota         int           // model invocations per free user
	ProQuota          int           // model invocations per pro user
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	// Load Server config
	config.Server = ServerConfig{
		Port: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	// Load Database config
	config.Database = DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "postgres"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault("DB_NAME", "compareapp"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	// Load LLM config
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		logger.Log.Warn("OPENROUTER_API_KEY environment variable not set")
	}

	config.LLM = LLMConfig{
		OpenRouterAPIKey:    apiKey,
		DefaultSystemPrompt: getEnvOrDefault("OPENROUTER_SYSTEM_PROMPT", "You are a helpful assistant."),
		Provider:            getEnvOrDefault("LLM_PROVIDER", "openrouter"),
	}

	// Load Auth config
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
	}

	// Load Compare config
	config.Compare = DefaultCompareConfig()
	config.Compare.MaxModels = getEnvAsInt("COMPARE_MAX_MODELS", config.Compare.MaxModels)
	config.Compare.HistoryLimit = getEnvAsInt("COMPARE_HISTORY_LIMIT", config.Compare.HistoryLimit)
	config.Compare.HeartbeatInterval = getEnvAsDuration("COMPARE_HEARTBEAT_INTERVAL", config.Compare.HeartbeatInterval)
	config.Compare.RequestTimeout = getEnvAsDuration("COMPARE_REQUEST_TIMEOUT", config.Compare.RequestTimeout)
	config.Compare.SweepInterval = getEnvAsDuration("COMPARE_SWEEP_INTERVAL", config.Compare.SweepInterval)
	config.Compare.SweepMaxAge = getEnvAsDuration("COMPARE_SWEEP_MAX_AGE", config.Compare.SweepMaxAge)
	config.Compare.FreeQuota = getEnvAsInt("COMPARE_FREE_QUOTA", config.Compare.FreeQuota)
	config.Compare.ProQuota = getEnvAsInt("COMPARE_PRO_QUOTA", config.Compare.ProQuota)

	// Load Models config
	modelsConfigPath := getEnvOrDefault("MODELS_CONFIG_PATH", filepath.Join("config", "models.json"))
	modelsConfig, err := NewModelsConfig(modelsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}
	config.Models = modelsConfig

	return config, nil
}

// DefaultCompareConfig returns the built-in compare pipeline limits
func DefaultCompareConfig() CompareConfig {
	return CompareConfig{
		MaxModels:         3,
		HistoryLimit:      24,
		HeartbeatInterval: 10 * time.Second,
		RequestTimeout:    60 * time.Second,
		SweepInterval:     5 * time.Minute,
		SweepMaxAge:       5 * time.Minute,
		FreeQuota:         50,
		ProQuota:          1000,
	}
}

// QuotaForPlan returns the model-invocation quota for a plan tier
func (c *CompareConfig) QuotaForPlan(plan string) int {
	if plan == "pro" {
		return c.ProQuota
	}
	return c.FreeQuota
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}
