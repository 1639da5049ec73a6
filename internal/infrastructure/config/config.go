// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	autoThreshold := cfg.Reconciliation.AutoMatchThreshold
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage        StorageConfig        `yaml:"storage"`
	Server         ServerConfig         `yaml:"server"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Gemini         GeminiConfig         `yaml:"gemini"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ReconciliationConfig holds the matching thresholds and batch limits.
// The defaults mirror production behavior; tests override them to probe
// boundary values.
type ReconciliationConfig struct {
	AutoMatchThreshold  int    `yaml:"auto_match_threshold"`
	SuggestionThreshold int    `yaml:"suggestion_threshold"`
	BatchLimit          int    `yaml:"batch_limit"`
	Scorer              string `yaml:"scorer"` // "rules" or "gemini"
}

// GeminiConfig holds settings for the AI-assisted scorer
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${GEMINI_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("RENTDESK_DB_PATH", "rentdesk.db"),
		},
		Server: ServerConfig{
			Port: getEnvInt("RENTDESK_PORT", 8080),
		},
		Reconciliation: ReconciliationConfig{
			AutoMatchThreshold:  getEnvInt("RECONCILE_AUTO_THRESHOLD", 70),
			SuggestionThreshold: getEnvInt("RECONCILE_SUGGEST_THRESHOLD", 40),
			BatchLimit:          getEnvInt("RECONCILE_BATCH_LIMIT", 500),
			Scorer:              getEnv("RECONCILE_SCORER", "rules"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills zero values with production defaults so a sparse
// YAML file still yields a usable config.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "rentdesk.db"
	}
	if c.Reconciliation.AutoMatchThreshold == 0 {
		c.Reconciliation.AutoMatchThreshold = 70
	}
	if c.Reconciliation.SuggestionThreshold == 0 {
		c.Reconciliation.SuggestionThreshold = 40
	}
	if c.Reconciliation.BatchLimit == 0 {
		c.Reconciliation.BatchLimit = 500
	}
	if c.Reconciliation.Scorer == "" {
		c.Reconciliation.Scorer = "rules"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
