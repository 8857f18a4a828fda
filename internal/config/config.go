// Package config loads and validates the twodoracle configuration from a YAML
// file with environment variable overrides (prefix TWOD_ORACLE).
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // market time zone must load on hosts without zoneinfo

	"github.com/spf13/viper"

	"github.com/rewired-gh/twodoracle/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FeedConfig holds the SET 2D feed API configuration
type FeedConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryDelayBase     time.Duration `mapstructure:"retry_delay_base"`
	FastPollInterval   time.Duration `mapstructure:"fast_poll_interval"`
	NormalPollInterval time.Duration `mapstructure:"normal_poll_interval"`
	Timezone           string        `mapstructure:"timezone"`
}

// AnalysisConfig holds the pattern analysis window configuration
type AnalysisConfig struct {
	FilteringWindow  int      `mapstructure:"filtering_window"`
	EvaluationWindow int      `mapstructure:"evaluation_window"`
	Sessions         []string `mapstructure:"sessions"`
	CacheEnabled     bool     `mapstructure:"cache_enabled"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxDays int    `mapstructure:"max_days"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	RateLimit int    `mapstructure:"rate_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override (TWOD_ORACLE_TELEGRAM_BOT_TOKEN, ...)
	v.SetEnvPrefix("TWOD_ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Feed defaults
	v.SetDefault("feed.base_url", "https://api.thaistock2d.com")
	v.SetDefault("feed.timeout", "10s")
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("feed.retry_delay_base", "1s")
	v.SetDefault("feed.fast_poll_interval", "10s")
	v.SetDefault("feed.normal_poll_interval", "60s")
	v.SetDefault("feed.timezone", "Asia/Yangon")

	// Analysis defaults
	v.SetDefault("analysis.filtering_window", 30)
	v.SetDefault("analysis.evaluation_window", 90)
	v.SetDefault("analysis.sessions", []string{"12:01", "16:30"})
	v.SetDefault("analysis.cache_enabled", true)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/twodoracle.db")
	v.SetDefault("storage.max_days", 400)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Feed config
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if c.Feed.MaxRetries < 1 {
		return fmt.Errorf("feed.max_retries must be at least 1")
	}
	if c.Feed.FastPollInterval < time.Second {
		return fmt.Errorf("feed.fast_poll_interval must be at least 1 second")
	}
	if c.Feed.NormalPollInterval < c.Feed.FastPollInterval {
		return fmt.Errorf("feed.normal_poll_interval must not be shorter than feed.fast_poll_interval")
	}
	if _, err := time.LoadLocation(c.Feed.Timezone); err != nil {
		return fmt.Errorf("feed.timezone is invalid: %w", err)
	}

	// Validate Analysis config
	if c.Analysis.FilteringWindow < 2 {
		return fmt.Errorf("analysis.filtering_window must be at least 2")
	}
	if c.Analysis.EvaluationWindow < c.Analysis.FilteringWindow {
		return fmt.Errorf("analysis.evaluation_window must be at least analysis.filtering_window")
	}
	if len(c.Analysis.Sessions) == 0 {
		return fmt.Errorf("analysis.sessions must contain at least one session")
	}
	if _, err := c.Analysis.SessionSlots(); err != nil {
		return fmt.Errorf("analysis.sessions: %w", err)
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxDays < 1 {
		return fmt.Errorf("storage.max_days must be at least 1")
	}

	// Validate Server config
	if c.Server.Enabled {
		if c.Server.Addr == "" {
			return fmt.Errorf("server.addr is required when server is enabled")
		}
		if c.Server.RateLimit < 1 {
			return fmt.Errorf("server.rate_limit must be at least 1")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// SessionSlots parses the configured session labels.
func (a AnalysisConfig) SessionSlots() ([]models.Session, error) {
	slots := make([]models.Session, 0, len(a.Sessions))
	for _, s := range a.Sessions {
		slot, err := models.ParseSession(s)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Location returns the market time zone. Validate guarantees it loads.
func (f FeedConfig) Location() *time.Location {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
