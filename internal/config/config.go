// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first if present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port   int
	DBPath string

	SessionSecret  string
	SessionTTL     time.Duration
	CookieName     string
	CookieSecure   bool
	CookieHTTPOnly bool

	// RedisURL selects the Redis session store. Empty keeps sessions in SQLite.
	RedisURL string

	// DefaultAvatarURL is absolute so it resolves from any front-end origin.
	// The server itself serves the image at /images/default-avatar.png.
	DefaultAvatarURL string

	// CORSAllowedOrigins restricts cross-origin callers. Empty reflects any origin.
	CORSAllowedOrigins []string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	LogLevel slog.Level
}

// ErrMissingSecret is returned by Validate when SESSION_SECRET is unset.
var ErrMissingSecret = errors.New("config: SESSION_SECRET must be set")

// Load reads .env (if any) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	port := getEnvAsInt("PORT", 4000)

	cfg := &Config{
		Port:   port,
		DBPath: getEnv("DB_PATH", "data/codespaces.db"),

		SessionSecret:  getEnv("SESSION_SECRET", ""),
		SessionTTL:     time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 168)) * time.Hour,
		CookieName:     getEnv("SESSION_COOKIE_NAME", "token"),
		CookieSecure:   getEnvAsBool("SESSION_COOKIE_SECURE", false),
		CookieHTTPOnly: getEnvAsBool("SESSION_COOKIE_HTTP_ONLY", false),

		RedisURL: getEnv("REDIS_URL", ""),

		DefaultAvatarURL: getEnv("DEFAULT_AVATAR_URL", fmt.Sprintf("http://localhost:%d/images/default-avatar.png", port)),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubCallbackURL:  getEnv("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),

		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return ErrMissingSecret
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL_HOURS must be positive")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: DB_PATH must not be empty")
	}
	return nil
}

// GitHubEnabled reports whether GitHub login routes should be mounted.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
