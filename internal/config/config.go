// Package config provides configuration for the concierge service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the concierge service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// LLM provider
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Auth
	AuthSecret string

	// CORS. AllowOrigins is built once at load and treated as immutable.
	DefaultOrigin string
	AllowOrigins  []string

	// Rate limiting (per user)
	RatePerSecond float64
	RateBurst     int

	// Orchestration limits
	RequestTimeout  time.Duration
	ModelTimeout    time.Duration
	ToolTimeout     time.Duration
	ModelRetryDelay time.Duration
	MaxModelCalls   int

	// Persona
	SystemPrompt string

	// Logging
	LogLevel string
}

// Persona is the optional TOML file overriding the concierge persona.
type Persona struct {
	SystemPrompt string   `toml:"system_prompt"`
	ExtraOrigins []string `toml:"extra_origins"`
}

// DefaultSystemPrompt is the baseline concierge persona used when no persona
// file is configured.
const DefaultSystemPrompt = `You are the concierge for a members-only hospitality club. ` +
	`You help members find venues, check availability, and book tables using the tools available to you. ` +
	`For anything outside the venue catalog (yachts, jets, villas, group events) use the escalate_to_concierge tool ` +
	`so a human team member follows up. Never invent venues or confirm a booking without a booking reference from a tool. ` +
	`Keep replies short and warm.`

// Load loads configuration from environment variables and the optional
// persona file named by CONCIERGE_PERSONA_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		AuthSecret:      getEnv("AUTH_SECRET", ""),
		DefaultOrigin:   getEnv("CORS_DEFAULT_ORIGIN", "https://app.velvetlist.com"),
		RatePerSecond:   getEnvFloat("RATE_PER_SECOND", 1),
		RateBurst:       getEnvInt("RATE_BURST", 5),
		RequestTimeout:  time.Duration(getEnvInt("REQUEST_TIMEOUT_MS", 20000)) * time.Millisecond,
		ModelTimeout:    time.Duration(getEnvInt("MODEL_TIMEOUT_MS", 12000)) * time.Millisecond,
		ToolTimeout:     time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 5000)) * time.Millisecond,
		ModelRetryDelay: time.Duration(getEnvInt("MODEL_RETRY_DELAY_MS", 500)) * time.Millisecond,
		MaxModelCalls:   getEnvInt("MAX_MODEL_CALLS", 5),
		SystemPrompt:    DefaultSystemPrompt,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	cfg.AllowOrigins = []string{
		cfg.DefaultOrigin,
		"capacitor://localhost",
		"http://localhost:8081",
	}
	if extra := getEnv("CORS_EXTRA_ORIGINS", ""); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}

	if path := getEnv("CONCIERGE_PERSONA_FILE", ""); path != "" {
		var p Persona
		if _, err := toml.DecodeFile(path, &p); err != nil {
			return nil, fmt.Errorf("failed to load persona file %s: %w", path, err)
		}
		if p.SystemPrompt != "" {
			cfg.SystemPrompt = p.SystemPrompt
		}
		cfg.AllowOrigins = append(cfg.AllowOrigins, p.ExtraOrigins...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on missing required secrets so a misconfigured deploy
// dies at cold start instead of per-request.
func (c *Config) Validate() error {
	var missing []string
	if c.LLMAPIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.AuthSecret == "" {
		missing = append(missing, "AUTH_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.ModelTimeout >= c.RequestTimeout || c.ToolTimeout >= c.RequestTimeout {
		return fmt.Errorf("per-call timeouts must be smaller than REQUEST_TIMEOUT_MS")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
