// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all server configuration.
type Config struct {
	Port      int
	Env       string
	PublicURL string // externally visible base URL, used for auth redirects

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Identity provider
	AuthURL          string
	AuthClientID     string
	AuthClientSecret string

	// Text generation. An empty key disables weekly reflections.
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	LogLevel  string // debug, info, warn, error
	LogFormat string // json, console
}

// Load reads configuration from the environment, loading a .env file first
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnvInt("PORT", 8080),
		Env:       getEnv("ENV", EnvDevelopment),
		PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "noticing"),

		AuthURL:          getEnv("AUTH_URL", ""),
		AuthClientID:     getEnv("AUTH_CLIENT_ID", ""),
		AuthClientSecret: getEnv("AUTH_CLIENT_SECRET", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that required settings are present and well formed.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("ENV must be one of: development, production; got %q", c.Env))
	}

	if _, err := url.ParseRequestURI(c.PublicURL); err != nil {
		errs = append(errs, fmt.Errorf("PUBLIC_URL is not a valid URL: %w", err))
	}

	if c.AuthURL == "" {
		errs = append(errs, errors.New("AUTH_URL is required"))
	} else if _, err := url.ParseRequestURI(c.AuthURL); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_URL is not a valid URL: %w", err))
	}
	if c.AuthClientID == "" {
		errs = append(errs, errors.New("AUTH_CLIENT_ID is required"))
	}

	if c.DBName == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %q", c.LogLevel))
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of: json, console; got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// ReflectionsEnabled reports whether a text-generation key is configured.
func (c *Config) ReflectionsEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
