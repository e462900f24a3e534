// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix. A .env file, when present, is read
// first; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Mongo       MongoConfig
	AI          AIConfig
	Auth        AuthConfig
	Log         LogConfig
	SeedPath    string
	SeedOnStart bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects the relational store implementation.
type StoreConfig struct {
	Backend string // "postgres" or "memory"
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// CacheConfig holds Redis connection settings. An empty URL disables the
// catalog cache.
type CacheConfig struct {
	URL        string
	TTLSeconds int
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MongoConfig holds document store settings. An empty URL keeps the
// catalog in memory.
type MongoConfig struct {
	URL      string
	Database string
}

// AIConfig holds configuration for the quiz generation providers.
type AIConfig struct {
	OpenAI         OpenAIConfig
	DeepSeek       DeepSeekConfig
	Anthropic      AnthropicConfig
	Google         GoogleConfig
	OpenRouter     OpenRouterConfig
	Ollama         OllamaConfig
	TimeoutSeconds int
	Budget         BudgetConfig
}

// Timeout returns the per-request generation timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// GoogleConfig holds Gemini provider settings.
type GoogleConfig struct {
	APIKey string
	Model  string
}

// OpenRouterConfig holds OpenRouter provider settings (OpenAI-compatible).
type OpenRouterConfig struct {
	APIKey string
	Model  string
}

// OllamaConfig holds self-hosted Ollama settings. An empty URL disables it.
type OllamaConfig struct {
	URL   string
	Model string
}

// BudgetConfig limits generation tokens per caller. A zero limit disables
// the budget.
type BudgetConfig struct {
	TokensPerCaller int64
	WindowHours     int
}

// Window returns the period after which a caller's usage resets.
func (b BudgetConfig) Window() time.Duration {
	return time.Duration(b.WindowHours) * time.Hour
}

// AuthConfig holds authentication settings. An empty JWTSecret leaves the
// admin endpoints unavailable.
type AuthConfig struct {
	JWTSecret      string
	AccessTokenTTL int // minutes
}

// TokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTL) * time.Minute
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	if err := loadDotEnv(envStr("LEARN_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(envStr("LEARN_STORE_BACKEND", BackendPostgres)),
		},
		Database: DatabaseConfig{
			URL:         envStr("LEARN_DATABASE_URL", ""),
			MaxConns:    envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns:    envInt("LEARN_DATABASE_MIN_CONNS", 5),
			AutoMigrate: envBool("LEARN_DATABASE_AUTO_MIGRATE", true),
		},
		Cache: CacheConfig{
			URL:        envStr("LEARN_CACHE_URL", ""),
			TTLSeconds: envInt("LEARN_CACHE_TTL_SECONDS", 300),
		},
		Mongo: MongoConfig{
			URL:      envStr("LEARN_MONGO_URL", ""),
			Database: envStr("LEARN_MONGO_DATABASE", "skillmaster"),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey:  envStr("LEARN_AI_OPENAI_API_KEY", ""),
				BaseURL: envStr("LEARN_AI_OPENAI_BASE_URL", ""),
				Model:   envStr("LEARN_AI_OPENAI_MODEL", "gpt-4o-mini"),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("LEARN_AI_DEEPSEEK_API_KEY", ""),
			},
			Anthropic: AnthropicConfig{
				APIKey: envStr("LEARN_AI_ANTHROPIC_API_KEY", ""),
				Model:  envStr("LEARN_AI_ANTHROPIC_MODEL", ""),
			},
			Google: GoogleConfig{
				APIKey: envStr("LEARN_AI_GOOGLE_API_KEY", ""),
				Model:  envStr("LEARN_AI_GOOGLE_MODEL", ""),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("LEARN_AI_OPENROUTER_API_KEY", ""),
				Model:  envStr("LEARN_AI_OPENROUTER_MODEL", ""),
			},
			Ollama: OllamaConfig{
				URL:   envStr("LEARN_AI_OLLAMA_URL", ""),
				Model: envStr("LEARN_AI_OLLAMA_MODEL", ""),
			},
			TimeoutSeconds: envInt("LEARN_AI_TIMEOUT_SECONDS", 20),
			Budget: BudgetConfig{
				TokensPerCaller: int64(envInt("LEARN_AI_TOKEN_BUDGET", 0)),
				WindowHours:     envInt("LEARN_AI_BUDGET_WINDOW_HOURS", 24),
			},
		},
		Auth: AuthConfig{
			JWTSecret:      envStr("LEARN_AUTH_JWT_SECRET", ""),
			AccessTokenTTL: envInt("LEARN_AUTH_ACCESS_TOKEN_TTL", 15),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envStr("LEARN_LOG_LEVEL", "info")),
			Format: strings.ToLower(envStr("LEARN_LOG_FORMAT", "json")),
		},
		SeedPath:    envStr("LEARN_SEED_PATH", "./seeds"),
		SeedOnStart: envBool("LEARN_SEED_ON_START", false),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("LEARN_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("LEARN_DATABASE_URL is required for the postgres store backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("LEARN_STORE_BACKEND must be 'postgres' or 'memory', got %q", c.Store.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LEARN_LOG_LEVEL must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if c.AI.Budget.TokensPerCaller < 0 {
		return fmt.Errorf("LEARN_AI_TOKEN_BUDGET must not be negative, got %d", c.AI.Budget.TokensPerCaller)
	}

	if c.Mongo.URL != "" && c.Mongo.Database == "" {
		return fmt.Errorf("LEARN_MONGO_DATABASE is required when LEARN_MONGO_URL is set")
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	ai := c.AI
	return ai.OpenAI.APIKey != "" || ai.DeepSeek.APIKey != "" || ai.Anthropic.APIKey != "" ||
		ai.Google.APIKey != "" || ai.OpenRouter.APIKey != "" || ai.Ollama.URL != ""
}

// loadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
