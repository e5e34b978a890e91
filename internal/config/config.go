package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, read once at startup.
type Config struct {
	Host         string
	Port         string
	DatabasePath string

	// PublicURL is the externally visible base URL used inside generated
	// embed snippets. Falls back to the inbound request host when empty.
	PublicURL string

	// AllowOrigins is the static CORS allow-list. The full allow-list is
	// this set merged with every origin in the registry.
	AllowOrigins []string

	// AdminAPIKey gates the admin surface. Empty or too short means the
	// admin surface reports itself disabled.
	AdminAPIKey string

	// AdminAuthMode selects the admin scheme: "bearer" or "cookie".
	AdminAuthMode string

	// AdminSessionTTL bounds cookie-session validity.
	AdminSessionTTL time.Duration

	// OpenAIAPIKey and OpenAIWorkflowID are the environment-level
	// fallbacks used when no site matches the caller's origin.
	OpenAIAPIKey     string
	OpenAIWorkflowID string

	// Session endpoint rate-limit policy.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Load reads configuration from the environment, honoring a .env file if
// one is present in the working directory.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Host:             getEnv("HOST", "127.0.0.1"),
		Port:             getEnv("PORT", "8080"),
		DatabasePath:     getEnv("DATABASE_PATH", "data/chatkit-broker.db"),
		PublicURL:        strings.TrimRight(getEnv("PUBLIC_URL", ""), "/"),
		AllowOrigins:     ParseAllowOrigins(os.Getenv("ALLOW_ORIGINS")),
		AdminAPIKey:      os.Getenv("ADMIN_API_KEY"),
		AdminAuthMode:    getEnv("ADMIN_AUTH_MODE", "bearer"),
		AdminSessionTTL:  getDuration("ADMIN_SESSION_TTL", 24*time.Hour),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIWorkflowID: os.Getenv("OPENAI_WORKFLOW_ID"),
		RateLimit:        getInt("SESSION_RATE_LIMIT", 60),
		RateLimitWindow:  getDuration("SESSION_RATE_WINDOW", time.Minute),
	}
}

// ParseAllowOrigins splits a comma-separated origin list, dropping empty
// entries. No normalization is applied: origins match verbatim.
func ParseAllowOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AdminEnabled reports whether the admin surface is usable. Mirrors the
// public behavior: a missing or short key means "feature off", not
// "wrong credential".
func (c *Config) AdminEnabled() bool {
	return len(c.AdminAPIKey) > 10
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
