// Package config loads client and devserver settings from a .env file,
// an optional TOML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration values for the chat client and the devserver.
type Config struct {
	API    APIConfig    `toml:"api"`
	Chat   ChatConfig   `toml:"chat"`
	Server ServerConfig `toml:"server"`
}

// APIConfig describes how the client reaches the REST backend.
type APIConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8080
	BaseURL string `toml:"base_url"`

	// Token is sent as a bearer token when non-empty
	Token string `toml:"token"`

	// RequestTimeout bounds every single request, including its rate limiter wait
	RequestTimeout Duration `toml:"request_timeout"`

	// LoadTimeout bounds a whole history load across all its pages
	LoadTimeout Duration `toml:"load_timeout"`

	// PageSize is the page limit used while loading full history
	PageSize int `toml:"page_size"`

	// RateLimit is the maximum number of requests per second
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// ChatConfig holds the sync client's settings.
type ChatConfig struct {
	// ViewerID identifies the local user; messages from this sender render as own
	ViewerID string `toml:"viewer_id"`

	// Conversations are the conversations the TUI can switch between
	Conversations []ConversationConfig `toml:"conversations"`

	// PollInterval is the incremental sync period
	PollInterval Duration `toml:"poll_interval"`

	// ScrollThreshold is the near-bottom distance in viewport lines
	ScrollThreshold int `toml:"scroll_threshold"`
}

// ConversationConfig names one conversation and the peer messages are sent to.
type ConversationConfig struct {
	ID         string `toml:"id"`
	ReceiverID string `toml:"receiver_id"`
	Title      string `toml:"title"`
}

// ServerConfig holds the devserver's settings.
type ServerConfig struct {
	Port            string   `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	Retention       Duration `toml:"retention"`
	CleanupInterval Duration `toml:"cleanup_interval"`
}

// Duration is a time.Duration decoded from strings like "3s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			RequestTimeout: Duration{10 * time.Second},
			LoadTimeout:    Duration{5 * time.Minute},
			PageSize:       100,
			RateLimit:      5,
			RateBurst:      5,
		},
		Chat: ChatConfig{
			PollInterval:    Duration{3 * time.Second},
			ScrollThreshold: 3,
		},
		Server: ServerConfig{
			Port:            "8080",
			CORSOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
			Retention:       Duration{24 * time.Hour},
			CleanupInterval: Duration{time.Minute},
		},
	}
}

// Load reads a .env file if present, then the TOML file at path if it exists,
// then applies environment variable overrides and validates the result.
func Load(path string) (*Config, error) {
	// Attempt to load .env file - not an error if it doesn't exist
	// as we may be running with real environment variables
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.RequestTimeout.Duration <= 0 {
		return errors.New("api.request_timeout must be positive")
	}
	if c.API.LoadTimeout.Duration <= 0 {
		return errors.New("api.load_timeout must be positive")
	}
	if c.API.PageSize <= 0 {
		return errors.New("api.page_size must be positive")
	}
	if c.API.RateLimit <= 0 || c.API.RateBurst <= 0 {
		return errors.New("api.rate_limit and api.rate_burst must be positive")
	}
	if c.Chat.PollInterval.Duration <= 0 {
		return errors.New("chat.poll_interval must be positive")
	}
	if c.Chat.ScrollThreshold < 0 {
		return errors.New("chat.scroll_threshold must not be negative")
	}
	for i, conv := range c.Chat.Conversations {
		if conv.ID == "" {
			return fmt.Errorf("chat.conversations[%d]: id is required", i)
		}
	}
	if c.Server.Retention.Duration <= 0 {
		return errors.New("server.retention must be positive")
	}
	if c.Server.CleanupInterval.Duration <= 0 {
		return errors.New("server.cleanup_interval must be positive")
	}
	return nil
}

// Conversation returns the configured conversation with the given ID.
func (c *Config) Conversation(id string) (ConversationConfig, bool) {
	for _, conv := range c.Chat.Conversations {
		if conv.ID == id {
			return conv, true
		}
	}
	return ConversationConfig{}, false
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	cfg.API.BaseURL = getEnv("TALKIE_API_URL", cfg.API.BaseURL)
	cfg.API.Token = getEnv("TALKIE_API_TOKEN", cfg.API.Token)
	cfg.Chat.ViewerID = getEnv("TALKIE_VIEWER_ID", cfg.Chat.ViewerID)
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)

	// Format: comma-separated list of origins
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		cfg.Server.CORSOrigins = origins
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"TALKIE_REQUEST_TIMEOUT", &cfg.API.RequestTimeout},
		{"TALKIE_POLL_INTERVAL", &cfg.Chat.PollInterval},
		{"TALKIE_RETENTION", &cfg.Server.Retention},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			if err := d.dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
		}
	}

	if v := os.Getenv("TALKIE_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TALKIE_PAGE_SIZE: %w", err)
		}
		cfg.API.PageSize = n
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
