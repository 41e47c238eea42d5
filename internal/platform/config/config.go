// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	AI          AIConfig
	Normalizer  NormalizerConfig
	Limits      LimitsConfig
	Graph       GraphConfig
	Log         LogConfig
	IntentsPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// intent failures in memory only.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL keeps
// generated lessons in process memory.
type CacheConfig struct {
	URL       string
	LessonTTL time.Duration
}

// AIConfig holds the model service settings.
type AIConfig struct {
	Google        GoogleConfig
	FallbackModel string
	SessionBudget int
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	SpeechModel string
	Voice       string
	MaxRetries  int
}

// NormalizerConfig selects how model output is coerced.
type NormalizerConfig struct {
	Repair bool
	Strict bool
}

// LimitsConfig bounds request and payload sizes.
type LimitsConfig struct {
	SpeechChars      int
	ChatContextChars int
	ChatHistory      int
	UploadBytes      int64
	ExamQuestions    int
}

// GraphConfig holds the layout viewport and frame rate.
type GraphConfig struct {
	Width        float64
	Height       float64
	TickInterval time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL:       envStr("LEARN_CACHE_URL", ""),
			LessonTTL: time.Duration(envInt("LEARN_CACHE_LESSON_TTL_MINUTES", 60)) * time.Minute,
		},
		AI: AIConfig{
			Google: GoogleConfig{
				APIKey:      envStr("LEARN_AI_GOOGLE_API_KEY", ""),
				BaseURL:     envStr("LEARN_AI_GOOGLE_BASE_URL", ""),
				Model:       envStr("LEARN_AI_GOOGLE_MODEL", "gemini-2.5-flash"),
				SpeechModel: envStr("LEARN_AI_GOOGLE_SPEECH_MODEL", ""),
				Voice:       envStr("LEARN_AI_GOOGLE_VOICE", ""),
				MaxRetries:  envInt("LEARN_AI_GOOGLE_MAX_RETRIES", 3),
			},
			FallbackModel: envStr("LEARN_AI_FALLBACK_MODEL", ""),
			SessionBudget: envInt("LEARN_AI_SESSION_TOKEN_BUDGET", 0),
		},
		Normalizer: NormalizerConfig{
			Repair: envBool("LEARN_NORMALIZER_REPAIR", true),
			Strict: envBool("LEARN_NORMALIZER_STRICT", false),
		},
		Limits: LimitsConfig{
			SpeechChars:      envInt("LEARN_LIMITS_SPEECH_CHARS", 500),
			ChatContextChars: envInt("LEARN_LIMITS_CHAT_CONTEXT_CHARS", 5000),
			ChatHistory:      envInt("LEARN_LIMITS_CHAT_HISTORY", 40),
			UploadBytes:      int64(envInt("LEARN_LIMITS_UPLOAD_BYTES", 20<<20)),
			ExamQuestions:    envInt("LEARN_LIMITS_EXAM_QUESTIONS", 5),
		},
		Graph: GraphConfig{
			Width:        float64(envInt("LEARN_GRAPH_WIDTH", 800)),
			Height:       float64(envInt("LEARN_GRAPH_HEIGHT", 600)),
			TickInterval: time.Duration(envInt("LEARN_GRAPH_TICK_MS", 16)) * time.Millisecond,
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
		IntentsPath: envStr("LEARN_INTENTS_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.AI.Google.APIKey == "" {
		return fmt.Errorf("LEARN_AI_GOOGLE_API_KEY is required")
	}
	if c.AI.SessionBudget < 0 {
		return fmt.Errorf("LEARN_AI_SESSION_TOKEN_BUDGET must not be negative, got %d", c.AI.SessionBudget)
	}
	if c.Limits.SpeechChars <= 0 || c.Limits.ChatContextChars <= 0 || c.Limits.ChatHistory <= 0 {
		return fmt.Errorf("speech, chat context and chat history limits must be positive")
	}
	if c.Limits.UploadBytes <= 0 {
		return fmt.Errorf("LEARN_LIMITS_UPLOAD_BYTES must be positive, got %d", c.Limits.UploadBytes)
	}
	if c.Limits.ExamQuestions <= 0 {
		return fmt.Errorf("LEARN_LIMITS_EXAM_QUESTIONS must be positive, got %d", c.Limits.ExamQuestions)
	}
	if c.Graph.Width <= 0 || c.Graph.Height <= 0 {
		return fmt.Errorf("graph viewport must be positive, got %vx%v", c.Graph.Width, c.Graph.Height)
	}
	if c.Graph.TickInterval <= 0 {
		return fmt.Errorf("LEARN_GRAPH_TICK_MS must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("LEARN_DATABASE_MIN_CONNS (%d) exceeds LEARN_DATABASE_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LEARN_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
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
