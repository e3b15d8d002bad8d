package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// HTTP
	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	// Index build
	ContentDir    string // Directory of HTML pages to index
	SiteBaseURL   string // Base URL for live-page fallback extraction
	DBPath        string
	ArtifactPath  string // Where the pipeline writes the JSON index artifact ("" disables)
	ArtifactURL   string // Preferred index source at query time ("" disables)
	RetrievalK    int
	ContextMaxLen int

	// External generation endpoint (optional; "" disables delegation)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Semantic scoring (optional; all three required to enable)
	EmbeddingBaseURL string
	EmbeddingModel   string
	VectorSize       int
	QdrantURL        string
	QdrantCollection string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it is loaded
// automatically; environment variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up toward the project root looking for a .env
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		APIPort:          getEnv("API_PORT", "9000"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		ContentDir:       getEnv("CONTENT_DIR", "./site"),
		SiteBaseURL:      getEnv("SITE_BASE_URL", ""),
		DBPath:           getEnv("DB_PATH", "./data/terpedia.db"),
		ArtifactPath:     getEnv("INDEX_ARTIFACT_PATH", ""),
		ArtifactURL:      getEnv("INDEX_ARTIFACT_URL", ""),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", ""),
		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", ""),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL_NAME", ""),
		QdrantURL:        getEnv("QDRANT_URL", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "terpedia"),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.RetrievalK, err = getEnvInt("RETRIEVAL_K", 5)
	if err != nil {
		return nil, err
	}
	cfg.ContextMaxLen, err = getEnvInt("CONTEXT_MAX_CHARS", 1800)
	if err != nil {
		return nil, err
	}

	// Vector size only matters when semantic scoring is enabled.
	if cfg.SemanticEnabled() {
		cfg.VectorSize, err = getEnvInt("VECTOR_SIZE", 0)
		if err != nil {
			return nil, err
		}
		if cfg.VectorSize <= 0 {
			return nil, fmt.Errorf("VECTOR_SIZE must be greater than 0 when semantic scoring is configured")
		}
	}

	// Create the data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// GenerationEnabled reports whether the external generation endpoint is configured.
func (c *Config) GenerationEnabled() bool {
	return c.LLMBaseURL != ""
}

// SemanticEnabled reports whether the optional semantic scoring strategy is configured.
func (c *Config) SemanticEnabled() bool {
	return c.EmbeddingBaseURL != "" && c.EmbeddingModel != "" && c.QdrantURL != ""
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return value, nil
}
