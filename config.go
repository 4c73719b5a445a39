package chatpod

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultLanguage   = "English"
	defaultTrimBudget = 20
)

// Config enumerates the recognized options. Nothing else is read from the
// environment.
type Config struct {
	// Model is the provider model identifier.
	Model string

	// APIKey authenticates against the provider. Required.
	APIKey string

	// BaseURL overrides the provider endpoint. Empty means the default.
	BaseURL string

	// Language is the language the assistant is instructed to reply in.
	Language string

	// TrimBudget is the history budget in messages passed to Trim.
	TrimBudget int

	// SQLitePath, when set, enables durable history in a SQLite file.
	SQLitePath string

	// PostgresURI, when set, enables durable history in Postgres.
	PostgresURI string

	// Stream enables partial-text responses when the provider supports it.
	Stream bool
}

// LoadConfig reads configuration from a .env file if present, falling back to
// process environment variables. A missing API key is a startup error.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, falling back to environment variables")
	}

	cfg := &Config{
		Model:       getEnv("CHATPOD_MODEL", defaultModel),
		APIKey:      getEnv("OPENAI_API_KEY", ""),
		BaseURL:     getEnv("OPENAI_BASE_URL", ""),
		Language:    getEnv("CHATPOD_LANGUAGE", defaultLanguage),
		TrimBudget:  getEnvInt("CHATPOD_TRIM_BUDGET", defaultTrimBudget),
		SQLitePath:  getEnv("CHATPOD_SQLITE_PATH", ""),
		PostgresURI: getEnv("CHATPOD_POSTGRES_URI", ""),
		Stream:      getEnv("CHATPOD_STREAM", "") == "true",
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return cfg, nil
}

// TrimPolicy returns the trimming policy derived from the configured budget.
func (c *Config) TrimPolicy() TrimPolicy {
	return TrimPolicy{MaxUnits: c.TrimBudget, Unit: UnitMessages}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring non-integer environment value", "key", key, "value", value)
		return fallback
	}
	return n
}
