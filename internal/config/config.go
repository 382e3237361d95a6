package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// EngineConfig holds detection job behavior configuration
type EngineConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	MonthsBack int           `mapstructure:"months_back"`
	Timezone   string        `mapstructure:"timezone"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// StoreConfig holds document store configuration
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ServerConfig holds the admin/read HTTP API configuration
type ServerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("MUNIMAP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.interval", "24h")
	v.SetDefault("engine.months_back", 6)
	v.SetDefault("engine.timezone", "Asia/Jerusalem")
	v.SetDefault("engine.run_on_start", true)

	// Store defaults
	v.SetDefault("store.db_path", "./data/munimap.db")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_addr", ":4000")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Engine.Interval < 1*time.Minute {
		return fmt.Errorf("engine.interval must be at least 1 minute")
	}
	if c.Engine.MonthsBack < 2 {
		return fmt.Errorf("engine.months_back must be at least 2")
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("engine.timezone is not a valid IANA zone: %w", err)
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}

	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required when server is enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

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

// Location resolves the configured timezone used for calendar-month
// bin boundaries.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Engine.Timezone)
}
