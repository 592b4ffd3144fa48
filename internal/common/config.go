package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	MasterData MasterDataConfig
	LLM        LLMConfig
	Audit      AuditConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr    string
	MaxFormSize int64
}

// MasterDataConfig holds configuration for the company profile source.
type MasterDataConfig struct {
	SourceURL    string
	LocalPath    string
	FetchTimeout time.Duration
}

// LLMConfig holds model-fallback configuration
type LLMConfig struct {
	Model        string
	APIKey       string
	BaseURL      string
	Temperature  float32
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// AuditConfig holds fill-job audit store configuration
type AuditConfig struct {
	DBPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
			MaxFormSize: getEnvAsInt64("MAX_FORM_SIZE", 32<<20),
		},
		MasterData: MasterDataConfig{
			SourceURL:    getEnv("MASTER_DATA_URL", ""),
			LocalPath:    getEnv("MASTER_DATA_PATH", "./master_data.md"),
			FetchTimeout: getEnvAsDuration("MASTER_DATA_FETCH_TIMEOUT", 10*time.Second),
		},
		LLM: LLMConfig{
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature:  getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:      getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			MaxRetries:   getEnvAsInt("OPENAI_MAX_RETRIES", 1),
			RetryBackoff: getEnvAsDuration("OPENAI_RETRY_BACKOFF", 2*time.Second),
		},
		Audit: AuditConfig{
			DBPath: getEnv("AUDIT_DB_PATH", "./fill_jobs.db"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.MasterData.SourceURL == "" && c.MasterData.LocalPath == "" {
		return NewAppError("CONFIG_ERROR", "MASTER_DATA_URL or MASTER_DATA_PATH is required", ErrInvalidInput)
	}
	if c.Server.MaxFormSize <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_FORM_SIZE must be positive", ErrInvalidInput)
	}
	return nil
}
