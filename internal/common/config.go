// Package common provides shared utilities for Pacer
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Pacer
type Config struct {
	Environment string        `toml:"environment"`
	Portfolios  []string      `toml:"portfolios"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Engine      EngineConfig  `toml:"engine"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Gemini   GeminiConfig   `toml:"gemini"`
	Telegram TelegramConfig `toml:"telegram"`
	EODHD    EODHDConfig    `toml:"eodhd"`
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// TelegramConfig holds Telegram bot configuration for signal delivery.
type TelegramConfig struct {
	BotToken  string `toml:"bot_token"`
	ChatID    string `toml:"chat_id"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *TelegramConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// EngineConfig holds the accountability engine's clock and cadence settings.
// All day/time math in the engine runs in Timezone regardless of the host clock.
type EngineConfig struct {
	Timezone        string   `toml:"timezone"`         // IANA name, e.g. "Asia/Kolkata"
	MarketOpen      string   `toml:"market_open"`      // "HH:MM" in Timezone
	MarketClose     string   `toml:"market_close"`     // "HH:MM" in Timezone
	Holidays        []string `toml:"holidays"`         // "YYYY-MM-DD" non-trading dates
	TickInterval    string   `toml:"tick_interval"`    // scheduler cadence
	RepeatInterval  string   `toml:"repeat_interval"`  // minimum gap between re-notifications
	DeliveryTimeout string   `toml:"delivery_timeout"` // per-signal notification timeout
	LookbackDays    int      `toml:"lookback_days"`    // scorecard window
	CarryoverDays   int      `toml:"carryover_days"`   // ledger backward scan, trading days
	MaxAdmitted     int      `toml:"max_admitted"`     // admission cap per generation batch
}

// GetTickInterval parses and returns the scheduler tick interval.
func (c *EngineConfig) GetTickInterval() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetRepeatInterval parses and returns the re-notification interval.
func (c *EngineConfig) GetRepeatInterval() time.Duration {
	d, err := time.ParseDuration(c.RepeatInterval)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetDeliveryTimeout parses and returns the per-signal delivery timeout.
func (c *EngineConfig) GetDeliveryTimeout() time.Duration {
	d, err := time.ParseDuration(c.DeliveryTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultPortfolio returns the first portfolio in the list (the default), or empty string.
func (c *Config) DefaultPortfolio() string {
	if len(c.Portfolios) > 0 {
		return c.Portfolios[0]
	}
	return ""
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000/rpc",
			Namespace: "pacer",
			Database:  "pacer",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
			Telegram: TelegramConfig{
				RateLimit: 1,
				Timeout:   "10s",
			},
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Engine: EngineConfig{
			Timezone:        "Asia/Kolkata",
			MarketOpen:      "09:15",
			MarketClose:     "15:30",
			TickInterval:    "5m",
			RepeatInterval:  "30m",
			DeliveryTimeout: "10s",
			LookbackDays:    7,
			CarryoverDays:   5,
			MaxAdmitted:     5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PACER_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("PACER_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("PACER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("PACER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if addr := os.Getenv("PACER_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if v := os.Getenv("PACER_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("PACER_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Clients.Gemini.APIKey = key
	}
	if key := os.Getenv("PACER_GEMINI_API_KEY"); key != "" {
		config.Clients.Gemini.APIKey = key
	}
	if tok := os.Getenv("PACER_TELEGRAM_BOT_TOKEN"); tok != "" {
		config.Clients.Telegram.BotToken = tok
	}
	if chat := os.Getenv("PACER_TELEGRAM_CHAT_ID"); chat != "" {
		config.Clients.Telegram.ChatID = chat
	}
	if key := os.Getenv("EODHD_API_KEY"); key != "" {
		config.Clients.EODHD.APIKey = key
	}

	if tz := os.Getenv("PACER_TIMEZONE"); tz != "" {
		config.Engine.Timezone = tz
	}

	if dp := os.Getenv("PACER_DEFAULT_PORTFOLIO"); dp != "" {
		if len(config.Portfolios) == 0 {
			config.Portfolios = []string{dp}
		} else if config.Portfolios[0] != dp {
			filtered := []string{dp}
			for _, p := range config.Portfolios {
				if p != dp {
					filtered = append(filtered, p)
				}
			}
			config.Portfolios = filtered
		}
	}
}
