package config

import (
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort string

	// Model
	APIKey       string // credential for the hosted model; may be empty
	Model        string
	SystemPrompt string // overrides the built-in persona when set

	// Persistence
	StoreBackend    string
	DatabaseURL     string
	RedisURL        string
	ConversationTTL time.Duration
	EncryptionKey   []byte // optional, 32 raw bytes (AES-256)

	// Auth
	JWTSecret         string
	TokenExpiration   time.Duration
	AdminPasswordHash string // bcrypt; admin routes are disabled when empty

	// Diagnostics
	SlackBotToken     string
	SlackAlertChannel string

	// HTTP
	AllowedOrigins    []string
	SendRatePerMinute int

	LogLevel string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded, using environment variables only")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment without reading .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		APIKey:            getEnv("API_KEY", getEnv("GEMINI_API_KEY", "")),
		Model:             getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		SystemPrompt:      getEnv("SYSTEM_PROMPT", ""),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		SlackBotToken:     getEnv("SLACK_BOT_TOKEN", ""),
		SlackAlertChannel: getEnv("SLACK_ALERT_CHANNEL", ""),
		AllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ConversationTTL, err = hoursEnv("CONVERSATION_TTL_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.TokenExpiration, err = hoursEnv("JWT_EXPIRATION_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.SendRatePerMinute, err = intEnv("SEND_RATE_PER_MINUTE", 20); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required when STORE_BACKEND=redis")
		}
	default:
		return nil, errors.Errorf("unknown STORE_BACKEND %q (want memory, postgres or redis)", cfg.StoreBackend)
	}

	if keyHex := getEnv("ENCRYPTION_KEY", ""); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode ENCRYPTION_KEY from hex")
		}
		if len(key) != 32 {
			return nil, errors.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex characters) long, got %d bytes", len(key))
		}
		cfg.EncryptionKey = key
	}

	if cfg.JWTSecret == "" {
		// tokens will not survive a restart, which is fine for the memory backend
		cfg.JWTSecret = randomSecret()
		log.Warn().Msg("JWT_SECRET not set, using a random per-process secret")
	}

	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY not set, model calls will fail")
	}

	log.Info().
		Str("port", cfg.HTTPPort).
		Str("model", cfg.Model).
		Str("store", cfg.StoreBackend).
		Bool("encryption", cfg.EncryptionKey != nil).
		Bool("admin", cfg.AdminPasswordHash != "").
		Bool("slack_alerts", cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "").
		Dur("token_expiration", cfg.TokenExpiration).
		Msg("loaded config")

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.Errorf("invalid %s %q: want a positive integer", key, raw)
	}
	return n, nil
}

func hoursEnv(key string, fallback int) (time.Duration, error) {
	n, err := intEnv(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Hour, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
